package scheduler

import (
	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// filler runs the greedy quota-aware construction pass over every open
// teaching cell. Pass one places subjects with remaining hard deficit;
// pass two places slack subjects under the soft weekly ceiling so the
// repair engine inherits as few blanks as possible.
type filler struct {
	tt     *models.Timetable
	ledger *Ledger
	in     *Instance
	dir    *Directory
	quota  *QuotaEngine
	audit  *auditTrail
}

func (f *filler) run() {
	f.audit.section("Fill")
	order := models.SlotOrder(f.in.Slots)
	teaching := models.TeachingSlots(f.in.Slots)
	lastOrder := 0
	for _, s := range teaching {
		if order[s.ID] > lastOrder {
			lastOrder = order[s.ID]
		}
	}
	fixed := fixedCellSet(&f.in.Rules)
	skip := excludedSubjects(f.in)

	needs := make(map[string]map[string]int, len(f.in.Classes))
	weekly := make(map[string]map[string]int, len(f.in.Classes))
	for _, class := range f.in.Classes {
		needs[class] = f.quota.Normalized(class)
		weekly[class] = make(map[string]int)
	}
	for _, a := range f.tt.All() {
		if _, excluded := skip[a.Subject]; excluded {
			continue
		}
		if w, ok := weekly[a.Class]; ok {
			w[a.Subject]++
		}
		if n, ok := needs[a.Class]; ok {
			if rem, tracked := n[a.Subject]; tracked && rem > 0 {
				n[a.Subject] = rem - 1
			}
		}
	}

	for _, class := range f.in.Classes {
		softMax := f.quota.SoftMaxima(class)
		for _, day := range f.in.Days {
			for _, slot := range teaching {
				if _, reserved := fixed[dayCell{day, slot.ID}]; reserved {
					continue
				}
				if f.tt.Occupied(class, day, slot.ID) {
					continue
				}
				lastPeriod := order[slot.ID] == lastOrder

				subj, teacher, ok := f.bestDeficit(class, day, slot.ID, needs[class], weekly[class], order, lastPeriod)
				if ok {
					f.commit(class, day, slot.ID, subj, teacher, "fill")
					needs[class][subj]--
					weekly[class][subj]++
					continue
				}

				subj, teacher, ok = f.bestSlack(class, day, slot.ID, needs[class], weekly[class], softMax, order, lastPeriod)
				if ok {
					f.commit(class, day, slot.ID, subj, teacher, "fill slack")
					weekly[class][subj]++
				}
			}
		}
	}
}

// bestDeficit scores every subject with remaining hard deficit against the
// open cell and returns the winner.
func (f *filler) bestDeficit(class, day, slotID string, needs, weekly map[string]int, order map[string]int, lastPeriod bool) (string, string, bool) {
	bestScore := 0
	bestSubj, bestTeacher := "", ""
	found := false
	for subj, rem := range needs {
		if rem <= 0 {
			continue
		}
		score, teacher, ok := f.evaluate(class, day, slotID, subj, weekly, order, lastPeriod)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			found, bestScore, bestSubj, bestTeacher = true, score, subj, teacher
		}
	}
	return bestSubj, bestTeacher, found
}

// bestSlack relaxes the deficit requirement to the soft weekly ceiling.
func (f *filler) bestSlack(class, day, slotID string, needs, weekly, softMax map[string]int, order map[string]int, lastPeriod bool) (string, string, bool) {
	bestScore := 0
	bestSubj, bestTeacher := "", ""
	found := false
	for subj := range needs {
		if weekly[subj] >= softMax[subj] {
			continue
		}
		score, teacher, ok := f.evaluate(class, day, slotID, subj, weekly, order, lastPeriod)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			found, bestScore, bestSubj, bestTeacher = true, score, subj, teacher
		}
	}
	return bestSubj, bestTeacher, found
}

// evaluate checks the hard gates for one (subject, cell) option and scores
// it. A false return means the option is inadmissible.
func (f *filler) evaluate(class, day, slotID, subject string, weekly map[string]int, order map[string]int, lastPeriod bool) (int, string, bool) {
	if !f.in.Rules.WindowAllows(subject, class, day) {
		return 0, "", false
	}
	usedToday := f.countToday(class, day, subject)
	if usedToday > 0 && !f.doubleBlockExempt(class, day, subject, usedToday) {
		return 0, "", false
	}

	teacher := ""
	for _, cand := range f.dir.CandidatesFor(subject, class) {
		if f.ledger.CanPlace(cand, class, day, slotID) {
			teacher = cand
			break
		}
	}
	if teacher == "" {
		return 0, "", false
	}

	sameTime := false
	for _, a := range f.tt.AtTime(day, slotID) {
		if a.Class != class && a.Subject == subject {
			sameTime = true
			break
		}
	}
	minGap := -1
	here := order[slotID]
	for _, a := range f.tt.All() {
		if a.Day != day || a.Subject != subject || a.Class == class {
			continue
		}
		gap := here - order[a.SlotID]
		if gap < 0 {
			gap = -gap
		}
		if minGap < 0 || gap < minGap {
			minGap = gap
		}
	}

	score := scoreCandidate(&f.in.Rules, candidate{
		class: class, day: day, slotID: slotID,
		subject: subject, teacher: teacher,
		usedToday:  usedToday > 0,
		sameTime:   sameTime,
		weeklyUsed: weekly[subject],
		minGap:     minGap,
		lastPeriod: lastPeriod,
	})
	return score + f.in.Rules.Priority(subject), teacher, true
}

func (f *filler) commit(class, day, slotID, subject, teacher, action string) {
	f.tt.Place(models.Assignment{
		Class: class, Day: day, SlotID: slotID,
		Subject: subject, Teacher: teacher,
	})
	f.ledger.Place(teacher, class, day, slotID)
	f.audit.logf("%s %s %s %s -> %s (%s)", action, class, day, slotID, subject, teacher)
}

func (f *filler) countToday(class, day, subject string) int {
	n := 0
	for _, a := range f.tt.ForClassDay(class, day) {
		if a.Subject == subject {
			n++
		}
	}
	return n
}

// doubleBlockExempt allows the class's double-block subject a second
// period on its block days; every other subject is once per day.
func (f *filler) doubleBlockExempt(class, day, subject string, usedToday int) bool {
	db, ok := f.in.Rules.DoubleBlockFor(class)
	if !ok || db.Subject != subject || usedToday >= 2 {
		return false
	}
	return containsString(db.Days, day)
}

// dayCell addresses one (day, slot) column across all classes.
type dayCell struct {
	Day    string
	SlotID string
}

func fixedCellSet(r *Rules) map[dayCell]struct{} {
	out := make(map[dayCell]struct{}, len(r.Seeds.FixedSlots))
	for _, f := range r.Seeds.FixedSlots {
		out[dayCell{f.Day, f.SlotID}] = struct{}{}
	}
	return out
}
