package scheduler

import (
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// Weights is the cost model schema. Hard-violation terms carry weights
// orders of magnitude above the soft terms so they dominate the objective
// lexicographically without a separate hard/soft solver.
type Weights struct {
	Blank           int
	TeacherConflict int
	ClassConflict   int
	WindowViolation int
	AdjacentRepeat  int
	SameSlotRepeat  int
	FallbackSubject int
	TeacherIdleGap  int

	// Adaptive scale factors, >= 1.0, boosted mid-run once the matching
	// metric crosses its threshold.
	ScaleAdjacent float64
	ScaleSameSlot float64
}

// DefaultWeights returns the tuned baseline.
func DefaultWeights() Weights {
	return Weights{
		Blank:           1_000_000,
		TeacherConflict: 1_000_000,
		ClassConflict:   1_000_000,
		WindowViolation: 1_000_000,
		AdjacentRepeat:  2_500,
		SameSlotRepeat:  800,
		FallbackSubject: 250_000,
		TeacherIdleGap:  200,
		ScaleAdjacent:   1.0,
		ScaleSameSlot:   1.0,
	}
}

// Normalize replaces a zero-valued schema with the defaults and clamps
// the scale factors.
func (w Weights) Normalize() Weights {
	if w.Blank == 0 && w.TeacherConflict == 0 && w.WindowViolation == 0 {
		return DefaultWeights()
	}
	if w.ScaleAdjacent < 1 {
		w.ScaleAdjacent = 1
	}
	if w.ScaleSameSlot < 1 {
		w.ScaleSameSlot = 1
	}
	return w
}

// Metrics aggregates the independently weighted cost terms of a grid.
type Metrics struct {
	Blanks           int            `json:"blanks"`
	TeacherConflicts int            `json:"teacherConflicts"`
	ClassConflicts   int            `json:"classConflicts"`
	WindowViolations int            `json:"windowViolations"`
	AdjacentRepeats  int            `json:"adjacentRepeats"`
	SameSlotRepeats  int            `json:"sameSlotRepeats"`
	FallbackCount    int            `json:"fallbackCount"`
	TeacherIdleGaps  int            `json:"teacherIdleGaps"`
	AdjacencyByClass map[string]int `json:"adjacencyByClass,omitempty"`
}

// Conflicts sums both conflict dimensions.
func (m Metrics) Conflicts() int {
	return m.TeacherConflicts + m.ClassConflicts
}

// LexKey orders results: blanks, then conflicts, then window violations,
// then the weighted penalty. Lower is better.
type LexKey [4]int

// Less compares keys lexicographically.
func (k LexKey) Less(other LexKey) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// Key builds the restart-selection key from metrics and total penalty.
func (m Metrics) Key(penalty int) LexKey {
	return LexKey{m.Blanks, m.Conflicts(), m.WindowViolations, penalty}
}

// TotalCost folds the metrics into the single scalar objective.
func (w Weights) TotalCost(m Metrics) int {
	cost := m.Blanks * w.Blank
	cost += m.TeacherConflicts * w.TeacherConflict
	cost += m.ClassConflicts * w.ClassConflict
	cost += m.WindowViolations * w.WindowViolation
	cost += int(float64(m.AdjacentRepeats)*float64(w.AdjacentRepeat)*w.ScaleAdjacent + 0.5)
	cost += int(float64(m.SameSlotRepeats)*float64(w.SameSlotRepeat)*w.ScaleSameSlot + 0.5)
	cost += m.FallbackCount * w.FallbackSubject
	cost += m.TeacherIdleGaps * w.TeacherIdleGap
	return cost
}

// ComputeMetrics derives every cost term from the grid alone.
func ComputeMetrics(tt *models.Timetable, in *Instance) Metrics {
	m := Metrics{AdjacencyByClass: make(map[string]int)}
	teaching := models.TeachingSlots(in.Slots)
	order := models.SlotOrder(in.Slots)
	skip := excludedSubjects(in)

	for _, class := range in.Classes {
		for _, day := range in.Days {
			for _, s := range teaching {
				if !tt.Occupied(class, day, s.ID) {
					m.Blanks++
				}
			}
		}
	}

	teacherBusy := make(map[busyKey]int)
	classBusy := make(map[busyKey]int)
	for _, a := range tt.All() {
		classBusy[busyKey{a.Class, a.Day, a.SlotID}]++
		if a.Teacher != "" {
			teacherBusy[busyKey{a.Teacher, a.Day, a.SlotID}]++
		}
	}
	for _, n := range teacherBusy {
		if n > 1 {
			m.TeacherConflicts++
		}
	}
	for _, n := range classBusy {
		if n > 1 {
			m.ClassConflicts++
		}
	}

	for _, a := range tt.All() {
		if _, ok := skip[a.Subject]; ok {
			continue
		}
		if !in.Rules.WindowAllows(a.Subject, a.Class, a.Day) {
			m.WindowViolations++
		}
	}

	// Adjacency per class/day, discounting one free double block per week
	// for classes bound by a double-block rule.
	for _, class := range in.Classes {
		adjacency := 0
		blockAdjacency := 0
		db, hasBlock := in.Rules.DoubleBlockFor(class)
		for _, day := range in.Days {
			cells := dayCells(tt, class, day, order, skip)
			for i := 1; i < len(cells); i++ {
				if cells[i].Subject != cells[i-1].Subject {
					continue
				}
				if order[cells[i].SlotID]-order[cells[i-1].SlotID] != 1 {
					continue
				}
				adjacency++
				if hasBlock && cells[i].Subject == db.Subject {
					blockAdjacency++
				}
			}
		}
		m.AdjacencyByClass[class] = adjacency
		free := 0
		if hasBlock && blockAdjacency > 0 {
			free = 1
		}
		if adjacency > free {
			m.AdjacentRepeats += adjacency - free
		}
	}

	for _, class := range in.Classes {
		perSubjectSlot := make(map[string]map[string]int)
		for _, a := range tt.ForClass(class) {
			if _, ok := skip[a.Subject]; ok {
				continue
			}
			if perSubjectSlot[a.Subject] == nil {
				perSubjectSlot[a.Subject] = make(map[string]int)
			}
			perSubjectSlot[a.Subject][a.SlotID]++
		}
		for _, slots := range perSubjectSlot {
			for _, n := range slots {
				if n >= 2 {
					m.SameSlotRepeats += n - 1
				}
			}
		}
	}

	if in.Rules.FallbackSubject != "" {
		for _, a := range tt.All() {
			if a.Subject == in.Rules.FallbackSubject {
				m.FallbackCount++
			}
		}
	}

	teacherDays := make(map[[2]string][]int)
	for _, a := range tt.All() {
		if a.Teacher == "" {
			continue
		}
		key := [2]string{a.Teacher, a.Day}
		teacherDays[key] = append(teacherDays[key], order[a.SlotID])
	}
	for _, idxs := range teacherDays {
		if len(idxs) <= 1 {
			continue
		}
		sort.Ints(idxs)
		for i := 1; i < len(idxs); i++ {
			if gap := idxs[i] - idxs[i-1]; gap > 1 {
				m.TeacherIdleGaps += gap - 1
			}
		}
	}

	return m
}

// excludedSubjects are labels outside quality scoring: break/lunch cells
// and fixed-slot subjects.
func excludedSubjects(in *Instance) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range in.Slots {
		if !s.Teaching() {
			out[nonTeachingLabel(s)] = struct{}{}
		}
	}
	for _, f := range in.Rules.Seeds.FixedSlots {
		out[f.Subject] = struct{}{}
	}
	return out
}

func dayCells(tt *models.Timetable, class, day string, order map[string]int, skip map[string]struct{}) []models.Assignment {
	cells := make([]models.Assignment, 0, 10)
	for _, a := range tt.ForClassDay(class, day) {
		if _, ok := skip[a.Subject]; ok {
			continue
		}
		cells = append(cells, a)
	}
	sort.Slice(cells, func(i, j int) bool {
		return order[cells[i].SlotID] < order[cells[j].SlotID]
	})
	return cells
}
