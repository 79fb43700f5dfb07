// Package validate re-derives legality and quality findings from a
// finished grid alone, independently of the engine that produced it.
package validate

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Report is the external validator's output, serializable as-is.
type Report struct {
	ClashCount       int                 `json:"clashCount"`
	ViolationsByRule map[string][]string `json:"violationsByRule"`
	UnmetWeeklyLoads map[string]int      `json:"unmetWeeklyLoads"`
	ConcurrencyStats map[string]int      `json:"subjectConcurrencyStats"`
	BlankCells       []string            `json:"blankCells,omitempty"`
}

// Clean reports whether no hard finding was raised.
func (r *Report) Clean() bool {
	return r.ClashCount == 0 && len(r.ViolationsByRule) == 0 && len(r.BlankCells) == 0
}

// Check derives every finding from the grid and the instance's rule
// tables: collisions, window violations, daily repeats, quota shortfalls,
// concurrency hotspots, rotation spacing, and open cells.
func Check(tt *models.Timetable, in *scheduler.Instance) *Report {
	r := &Report{
		ViolationsByRule: make(map[string][]string),
		UnmetWeeklyLoads: make(map[string]int),
		ConcurrencyStats: make(map[string]int),
	}
	order := models.SlotOrder(in.Slots)
	teaching := models.TeachingSlots(in.Slots)
	skip := excluded(in)

	r.ClashCount = countClashes(tt)
	checkWindows(r, tt, in, skip)
	checkDailyRepeats(r, tt, in, skip)
	checkQuotas(r, tt, in, skip)
	checkConcurrency(r, tt, in, teaching, skip)
	checkRotationSpacing(r, tt, in, order)
	checkBlanks(r, tt, in, teaching)

	if len(r.ViolationsByRule) == 0 {
		r.ViolationsByRule = map[string][]string{}
	}
	return r
}

func countClashes(tt *models.Timetable) int {
	type slotKey struct{ owner, day, slot string }
	teacherSlots := make(map[slotKey]int)
	classSlots := make(map[slotKey]int)
	for _, a := range tt.All() {
		if a.Teacher != "" {
			teacherSlots[slotKey{a.Teacher, a.Day, a.SlotID}]++
		}
		classSlots[slotKey{a.Class, a.Day, a.SlotID}]++
	}
	clashes := 0
	for _, n := range teacherSlots {
		if n > 1 {
			clashes++
		}
	}
	for _, n := range classSlots {
		if n > 1 {
			clashes++
		}
	}
	return clashes
}

func checkWindows(r *Report, tt *models.Timetable, in *scheduler.Instance, skip map[string]struct{}) {
	for _, a := range tt.All() {
		if _, ok := skip[a.Subject]; ok {
			continue
		}
		if !in.Rules.WindowAllows(a.Subject, a.Class, a.Day) {
			r.violation("window", fmt.Sprintf("%s %s %s %s", a.Class, a.Day, a.SlotID, a.Subject))
		}
	}
}

func checkDailyRepeats(r *Report, tt *models.Timetable, in *scheduler.Instance, skip map[string]struct{}) {
	for _, class := range in.Classes {
		db, hasBlock := in.Rules.DoubleBlockFor(class)
		for _, day := range in.Days {
			counts := make(map[string]int)
			for _, a := range tt.ForClassDay(class, day) {
				if _, ok := skip[a.Subject]; ok {
					continue
				}
				counts[a.Subject]++
			}
			for subj, n := range counts {
				limit := 1
				if hasBlock && subj == db.Subject && containsDay(db.Days, day) {
					limit = 2
				}
				if n > limit {
					r.violation("repeat_in_day", fmt.Sprintf("%s %s %s", class, day, subj))
				}
			}
		}
	}
}

func checkQuotas(r *Report, tt *models.Timetable, in *scheduler.Instance, skip map[string]struct{}) {
	quota := scheduler.NewQuotaEngine(&in.Rules, in.Days, in.Slots)
	for _, class := range in.Classes {
		placed := make(map[string]int)
		for _, a := range tt.ForClass(class) {
			if _, ok := skip[a.Subject]; ok {
				continue
			}
			placed[a.Subject]++
		}
		for subj, tgt := range quota.Normalized(class) {
			if placed[subj] < tgt {
				r.UnmetWeeklyLoads[class+":"+subj] = tgt - placed[subj]
			}
		}
	}
}

func checkConcurrency(r *Report, tt *models.Timetable, in *scheduler.Instance, teaching []models.TimeSlot, skip map[string]struct{}) {
	for _, day := range in.Days {
		for _, slot := range teaching {
			counts := make(map[string]int)
			for _, a := range tt.AtTime(day, slot.ID) {
				if _, ok := skip[a.Subject]; ok {
					continue
				}
				counts[a.Subject]++
			}
			for subj, n := range counts {
				if n > 1 {
					r.ConcurrencyStats[day+":"+slot.ID+":"+subj] = n
				}
			}
		}
	}
}

// checkRotationSpacing enforces the rotation policy on the exported grid:
// no shared period and at least the configured separation between classes
// running the rotated subject on its day.
func checkRotationSpacing(r *Report, tt *models.Timetable, in *scheduler.Instance, order map[string]int) {
	for _, rule := range in.Rules.Seeds.Rotations {
		byDay := make(map[string][]int)
		for _, a := range tt.All() {
			if a.Subject == rule.Subject {
				byDay[a.Day] = append(byDay[a.Day], order[a.SlotID])
			}
		}
		for day, idxs := range byDay {
			sort.Ints(idxs)
			for i := 1; i < len(idxs); i++ {
				if idxs[i] == idxs[i-1] {
					r.violation("rotation_same_slot", fmt.Sprintf("%s %s", rule.Subject, day))
				} else if idxs[i]-idxs[i-1] < 2 {
					r.violation("rotation_gap", fmt.Sprintf("%s %s:%d-%d", rule.Subject, day, idxs[i-1], idxs[i]))
				}
			}
		}
	}
}

func checkBlanks(r *Report, tt *models.Timetable, in *scheduler.Instance, teaching []models.TimeSlot) {
	fixed := make(map[[2]string]struct{})
	for _, f := range in.Rules.Seeds.FixedSlots {
		fixed[[2]string{f.Day, f.SlotID}] = struct{}{}
	}
	for _, class := range in.Classes {
		for _, day := range in.Days {
			for _, slot := range teaching {
				if _, fx := fixed[[2]string{day, slot.ID}]; fx {
					continue
				}
				if !tt.Occupied(class, day, slot.ID) {
					r.BlankCells = append(r.BlankCells, fmt.Sprintf("%s %s %s", class, day, slot.ID))
				}
			}
		}
	}
	sort.Strings(r.BlankCells)
}

func (r *Report) violation(rule, detail string) {
	r.ViolationsByRule[rule] = append(r.ViolationsByRule[rule], detail)
}

// excluded builds the non-scored subject set from the slot template and
// fixed-slot rules.
func excluded(in *scheduler.Instance) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range in.Slots {
		if s.Teaching() {
			continue
		}
		label := s.Label
		if label == "" {
			switch s.Type {
			case models.SlotBreak:
				label = "Break"
			case models.SlotLunch:
				label = "Lunch"
			default:
				label = string(s.Type)
			}
		}
		out[label] = struct{}{}
	}
	for _, f := range in.Rules.Seeds.FixedSlots {
		out[f.Subject] = struct{}{}
	}
	// Seeded once-weekly subjects are outside quota checks.
	for subj := range in.Rules.SeededSubjects() {
		out[subj] = struct{}{}
	}
	return out
}

// Summary renders the compact textual form of the report.
func (r *Report) Summary() string {
	lines := []string{fmt.Sprintf("clash_count: %d", r.ClashCount)}
	lines = append(lines, "violations_by_rule:")
	rules := make([]string, 0, len(r.ViolationsByRule))
	for k := range r.ViolationsByRule {
		rules = append(rules, k)
	}
	sort.Strings(rules)
	for _, k := range rules {
		lines = append(lines, fmt.Sprintf("  - %s: %d", k, len(r.ViolationsByRule[k])))
	}
	lines = append(lines, fmt.Sprintf("unmet_weekly_loads: %d entries", len(r.UnmetWeeklyLoads)))
	lines = append(lines, fmt.Sprintf("blank_cells: %d", len(r.BlankCells)))
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
