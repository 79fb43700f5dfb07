package scheduler

import (
	"math/rand"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// repairer owns one restart's grid and ledger exclusively and runs the
// phase loop: blank fill, deficit replacement, pairwise hill-climb, then
// the global neighborhood search. Every speculative mutation is paired
// with exactly one undo on the rejecting path.
type repairer struct {
	tt     *models.Timetable
	ledger *Ledger
	in     *Instance
	dir    *Directory
	quota  *QuotaEngine
	audit  *auditTrail

	weights *Weights
	params  SearchParams
	rng     *rand.Rand
	tabu    *tabuList

	swapsLeft int
	order     map[string]int
	teaching  []models.TimeSlot
	fixed     map[dayCell]struct{}
	skip      map[string]struct{}

	boostedAdjacent bool
	boostedSameSlot bool
}

func newRepairer(tt *models.Timetable, ledger *Ledger, in *Instance, dir *Directory, quota *QuotaEngine, audit *auditTrail, weights *Weights, rng *rand.Rand) *repairer {
	params := in.Search.Normalize()
	return &repairer{
		tt: tt, ledger: ledger, in: in, dir: dir, quota: quota, audit: audit,
		weights:   weights,
		params:    params,
		rng:       rng,
		tabu:      newTabuList(params.TabuSize),
		swapsLeft: params.MaxSwaps,
		order:     models.SlotOrder(in.Slots),
		teaching:  models.TeachingSlots(in.Slots),
		fixed:     fixedCellSet(&in.Rules),
		skip:      excludedSubjects(in),
	}
}

func (r *repairer) run() {
	r.audit.section("Repair")
	for pass := 0; pass < r.params.MaxRepairPasses; pass++ {
		if r.swapsLeft <= 0 {
			break
		}
		before := r.cost()
		if before == 0 {
			break
		}
		for _, class := range r.in.Classes {
			r.blankFill(class)
			r.deficitReplace(class)
			r.hillClimb(class)
			if r.swapsLeft <= 0 {
				break
			}
		}
		r.neighborhoodLoop()

		m := ComputeMetrics(r.tt, r.in)
		r.adaptiveBoost(m)
		after := r.weights.TotalCost(m)
		if after == 0 || after >= before {
			break
		}
	}
}

func (r *repairer) cost() int {
	return r.weights.TotalCost(ComputeMetrics(r.tt, r.in))
}

// adaptiveBoost raises the adjacency and same-slot weights once per run
// when their metrics cross the configured thresholds, pushing later
// evaluations away from the worst offenders.
func (r *repairer) adaptiveBoost(m Metrics) {
	if !r.boostedAdjacent {
		for class, n := range m.AdjacencyByClass {
			if n >= r.params.AdjacencyBoostAt {
				r.weights.ScaleAdjacent *= r.params.AdaptiveBoostStep
				r.boostedAdjacent = true
				r.audit.logf("boost adjacency weight x%.1f (class %s at %d)", r.params.AdaptiveBoostStep, class, n)
				break
			}
		}
	}
	if !r.boostedSameSlot && m.SameSlotRepeats >= r.params.SameSlotBoostAt {
		r.weights.ScaleSameSlot *= r.params.AdaptiveBoostStep
		r.boostedSameSlot = true
		r.audit.logf("boost same-slot weight x%.1f (global at %d)", r.params.AdaptiveBoostStep, m.SameSlotRepeats)
	}
}

// take clears a cell and releases its ledger entries.
func (r *repairer) take(a models.Assignment) {
	r.tt.Remove(a.Class, a.Day, a.SlotID)
	r.ledger.Remove(a.Teacher, a.Class, a.Day, a.SlotID)
}

// put writes a cell and books its ledger entries.
func (r *repairer) put(a models.Assignment) {
	r.tt.Place(a)
	r.ledger.Place(a.Teacher, a.Class, a.Day, a.SlotID)
}

// probeTeacher finds a teacher for subject at the occupied cell's time,
// releasing the current occupant for the duration of each check.
func (r *repairer) probeTeacher(subject string, at models.Assignment) (string, bool) {
	for _, cand := range r.dir.CandidatesFor(subject, at.Class) {
		r.ledger.Remove(at.Teacher, at.Class, at.Day, at.SlotID)
		ok := r.ledger.CanPlace(cand, at.Class, at.Day, at.SlotID)
		r.ledger.Place(at.Teacher, at.Class, at.Day, at.SlotID)
		if ok {
			return cand, true
		}
	}
	return "", false
}

// weeklyCounts tallies scored subjects for the class.
func (r *repairer) weeklyCounts(class string) map[string]int {
	out := make(map[string]int)
	for _, a := range r.tt.ForClass(class) {
		if _, excluded := r.skip[a.Subject]; excluded {
			continue
		}
		out[a.Subject]++
	}
	return out
}

// deficits returns target minus placed per fillable subject, zero-floored.
func (r *repairer) deficits(class string) map[string]int {
	counts := r.weeklyCounts(class)
	out := make(map[string]int)
	for subj, tgt := range r.quota.Normalized(class) {
		if have := counts[subj]; tgt > have {
			out[subj] = tgt - have
		}
	}
	return out
}

func (r *repairer) usedToday(class, day, subject string) int {
	n := 0
	for _, a := range r.tt.ForClassDay(class, day) {
		if a.Subject == subject {
			n++
		}
	}
	return n
}

// dayAdmits gates (subject, class, day): window compliance plus daily
// uniqueness, with the double-block exemption.
func (r *repairer) dayAdmits(subject, class, day string) bool {
	if !r.in.Rules.WindowAllows(subject, class, day) {
		return false
	}
	used := r.usedToday(class, day, subject)
	if used == 0 {
		return true
	}
	db, ok := r.in.Rules.DoubleBlockFor(class)
	return ok && db.Subject == subject && used < 2 && containsString(db.Days, day)
}

// scanSlots orders teaching periods for blank scanning, last period first
// so end-of-day gaps fill before midday ones.
func (r *repairer) scanSlots() []string {
	ids := make([]string, 0, len(r.teaching)+1)
	if n := len(r.teaching); n > 0 {
		ids = append(ids, r.teaching[n-1].ID)
	}
	for _, s := range r.teaching {
		ids = append(ids, s.ID)
	}
	return ids
}

// blankFill places the most quota-deficient admissible subject into every
// open cell of the class.
func (r *repairer) blankFill(class string) {
	universe := sortedKeys(r.quota.Normalized(class))
	for _, day := range r.in.Days {
		for _, sid := range r.scanSlots() {
			if _, reserved := r.fixed[dayCell{day, sid}]; reserved {
				continue
			}
			if r.tt.Occupied(class, day, sid) {
				continue
			}
			def := r.deficits(class)
			ordered := append([]string(nil), universe...)
			sort.SliceStable(ordered, func(i, j int) bool {
				if def[ordered[i]] != def[ordered[j]] {
					return def[ordered[i]] > def[ordered[j]]
				}
				return r.in.Rules.Priority(ordered[i]) > r.in.Rules.Priority(ordered[j])
			})
			for _, subj := range ordered {
				if !r.dayAdmits(subj, class, day) {
					continue
				}
				teacher := ""
				for _, cand := range r.dir.CandidatesFor(subj, class) {
					if r.ledger.CanPlace(cand, class, day, sid) {
						teacher = cand
						break
					}
				}
				if teacher == "" {
					continue
				}
				r.put(models.Assignment{Class: class, Day: day, SlotID: sid, Subject: subj, Teacher: teacher})
				r.audit.logf("repair fill %s %s %s -> %s (%s)", class, day, sid, subj, teacher)
				break
			}
		}
	}
}

// deficitReplace swaps low-priority above-minimum cells for subjects still
// short of quota, on days where the needed subject is absent.
func (r *repairer) deficitReplace(class string) {
	minima := r.quota.Minima(class)
	for _, needSubj := range sortedKeys(r.deficits(class)) {
		remaining := r.deficits(class)[needSubj]
		for _, day := range r.in.Days {
			if remaining <= 0 || r.swapsLeft <= 0 {
				break
			}
			if r.usedToday(class, day, needSubj) > 0 {
				continue
			}
			if !r.in.Rules.WindowAllows(needSubj, class, day) {
				continue
			}
			counts := r.weeklyCounts(class)
			for _, slot := range r.teaching {
				a, ok := r.tt.Get(class, day, slot.ID)
				if !ok || a.Pinned || a.Subject == needSubj {
					continue
				}
				if _, excluded := r.skip[a.Subject]; excluded {
					continue
				}
				if counts[a.Subject] <= minima[a.Subject] {
					continue
				}
				key := singleMove("replace", a.Key())
				if r.tabu.Contains(key) {
					continue
				}
				teacher, found := r.probeTeacher(needSubj, a)
				if !found {
					continue
				}
				r.take(a)
				r.put(models.Assignment{Class: class, Day: day, SlotID: slot.ID, Subject: needSubj, Teacher: teacher})
				r.tabu.Add(key)
				r.swapsLeft--
				remaining--
				r.audit.logf("replace %s %s %s: %s -> %s (%s)", class, day, slot.ID, a.Subject, needSubj, teacher)
				break
			}
		}
	}
}

// hillClimb tries every pair of movable cells within the class, swapping
// subjects with teacher reassignment, keeping any swap whose total cost
// does not increase.
func (r *repairer) hillClimb(class string) {
	cells := r.movableCells(class)
	before := r.cost()
	for i := 0; i < len(cells); i++ {
		for j := i + 1; j < len(cells); j++ {
			if r.swapsLeft <= 0 {
				return
			}
			a1, a2 := cells[i], cells[j]
			if a1.Subject == a2.Subject {
				continue
			}
			key := swapMove("swap", a1.Key(), a2.Key())
			if r.tabu.Contains(key) {
				continue
			}
			if !r.swapAdmissible(a1, a2) {
				continue
			}
			t1, ok1 := r.probeTeacher(a2.Subject, a1)
			if !ok1 {
				continue
			}
			t2, ok2 := r.probeTeacher(a1.Subject, a2)
			if !ok2 {
				continue
			}

			r.take(a1)
			r.take(a2)
			n1 := models.Assignment{Class: class, Day: a1.Day, SlotID: a1.SlotID, Subject: a2.Subject, Teacher: t1}
			n2 := models.Assignment{Class: class, Day: a2.Day, SlotID: a2.SlotID, Subject: a1.Subject, Teacher: t2}
			if !r.ledger.CanPlace(n1.Teacher, n1.Class, n1.Day, n1.SlotID) {
				r.put(a2)
				r.put(a1)
				continue
			}
			r.put(n1)
			if !r.ledger.CanPlace(n2.Teacher, n2.Class, n2.Day, n2.SlotID) {
				r.take(n1)
				r.put(a2)
				r.put(a1)
				continue
			}
			r.put(n2)

			after := r.cost()
			if after <= before {
				before = after
				r.tabu.Add(key)
				r.swapsLeft--
				r.audit.logf("swap %s %s %s (%s) <-> %s %s (%s)", class, a1.Day, a1.SlotID, a1.Subject, a2.Day, a2.SlotID, a2.Subject)
				cells[i] = n1
				cells[j] = n2
			} else {
				r.take(n2)
				r.take(n1)
				r.put(a2)
				r.put(a1)
			}
		}
	}
}

// swapAdmissible checks daily uniqueness and windows for both directions
// of a subject swap between two cells of the same class.
func (r *repairer) swapAdmissible(a1, a2 models.Assignment) bool {
	if a1.Day == a2.Day && a1.SlotID == a2.SlotID {
		return false
	}
	if !r.in.Rules.WindowAllows(a2.Subject, a1.Class, a1.Day) {
		return false
	}
	if !r.in.Rules.WindowAllows(a1.Subject, a2.Class, a2.Day) {
		return false
	}
	if a1.Day != a2.Day {
		if r.countExcept(a1.Class, a1.Day, a2.Subject, a1.Key()) > 0 {
			return false
		}
		if r.countExcept(a2.Class, a2.Day, a1.Subject, a2.Key()) > 0 {
			return false
		}
	}
	return true
}

// countExcept counts the subject on the class's day, ignoring one cell.
func (r *repairer) countExcept(class, day, subject string, ignore models.CellKey) int {
	n := 0
	for _, a := range r.tt.ForClassDay(class, day) {
		if a.Key() == ignore {
			continue
		}
		if a.Subject == subject {
			n++
		}
	}
	return n
}

// movableCells lists the class's non-pinned, scorable assignments in a
// deterministic order.
func (r *repairer) movableCells(class string) []models.Assignment {
	var out []models.Assignment
	for _, a := range r.tt.Sorted(r.in.Days, r.in.Slots) {
		if a.Class != class || a.Pinned {
			continue
		}
		if _, excluded := r.skip[a.Subject]; excluded {
			continue
		}
		out = append(out, a)
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
