package scheduler

import (
	"strings"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// RelaxMode selects how elective minima are relaxed to relieve capacity
// pressure on infeasible instances.
type RelaxMode int

const (
	RelaxNone RelaxMode = iota
	RelaxGlobal
	RelaxTargeted
)

// Relaxation is either off, global, or targeted at a set of classes.
type Relaxation struct {
	mode    RelaxMode
	classes map[string]struct{}
}

// NoRelaxation leaves every quota as configured.
func NoRelaxation() Relaxation {
	return Relaxation{mode: RelaxNone}
}

// GlobalRelaxation shaves non-core minima by one for every class.
func GlobalRelaxation() Relaxation {
	return Relaxation{mode: RelaxGlobal}
}

// TargetedRelaxation shaves non-core minima by one for the listed classes only.
func TargetedRelaxation(classes ...string) Relaxation {
	set := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		set[c] = struct{}{}
	}
	return Relaxation{mode: RelaxTargeted, classes: set}
}

func (r Relaxation) appliesTo(class string) bool {
	switch r.mode {
	case RelaxGlobal:
		return true
	case RelaxTargeted:
		_, ok := r.classes[class]
		return ok
	default:
		return false
	}
}

// QuotaEngine derives per-class weekly targets from the tier rule tables,
// trimming them until they fit the grid's fillable capacity.
type QuotaEngine struct {
	rules          *Rules
	weekDays       int
	teachingPerDay int
	fixedCells     int
	relax          Relaxation
}

// NewQuotaEngine binds the rule tables to the week structure.
func NewQuotaEngine(rules *Rules, days []string, slots []models.TimeSlot) *QuotaEngine {
	fixed := 0
	for _, f := range rules.Seeds.FixedSlots {
		for _, d := range days {
			if f.Day == d {
				fixed++
			}
		}
	}
	return &QuotaEngine{
		rules:          rules,
		weekDays:       len(days),
		teachingPerDay: len(models.TeachingSlots(slots)),
		fixedCells:     fixed,
		relax:          NoRelaxation(),
	}
}

// SetRelaxation installs the relaxation policy for subsequent calls.
func (q *QuotaEngine) SetRelaxation(r Relaxation) {
	q.relax = r
}

// Capacity returns the number of fillable teaching cells per class per week.
func (q *QuotaEngine) Capacity() int {
	return q.weekDays*q.teachingPerDay - q.fixedCells
}

// Applicable returns the base weekly quotas valid for the class's tier,
// with tier exclusions removed and prefix-scoped zero overrides applied.
func (q *QuotaEngine) Applicable(class string) map[string]int {
	tier := q.rules.TierOf(class)
	out := make(map[string]int, len(q.rules.Quotas))
	for subj, n := range q.rules.Quotas {
		out[subj] = n
	}
	for _, subj := range q.rules.TierExclusions[tier] {
		delete(out, subj)
	}
	for prefix, subjects := range q.rules.PrefixZero {
		if !strings.HasPrefix(class, prefix) {
			continue
		}
		for _, subj := range subjects {
			if _, ok := out[subj]; ok {
				out[subj] = 0
			}
		}
	}
	return out
}

// Normalized computes the final weekly fill targets for the class: tier
// quotas, relaxation, core and tier floors, then iterative shaving of the
// lowest-priority electives until the total fits fillable capacity. When
// neither shaving nor floors can make the total fit, the excess remains
// and signals infeasibility upstream.
func (q *QuotaEngine) Normalized(class string) map[string]int {
	tier := q.rules.TierOf(class)
	base := q.Applicable(class)

	if q.relax.appliesTo(class) {
		for _, subj := range q.rules.NonCore {
			if n, ok := base[subj]; ok && n > 0 {
				base[subj] = n - 1
			}
		}
	}

	// Seeded once-weekly subjects consume capacity but are not filled here.
	reserved := 0
	for subj := range q.rules.ReservedSubjects() {
		reserved += base[subj]
	}
	capacityFill := q.Capacity() - reserved

	seeded := q.rules.SeededSubjects()
	fill := make(map[string]int, len(base))
	for subj, n := range base {
		if _, ok := seeded[subj]; ok {
			continue
		}
		fill[subj] = n
	}

	for subj, floor := range q.rules.CoreFloors {
		if n, ok := fill[subj]; ok && n < floor {
			fill[subj] = floor
		}
	}
	for subj, floor := range q.rules.TierFloors[tier] {
		if n, ok := fill[subj]; ok && n < floor {
			fill[subj] = floor
		}
	}

	mins := q.rules.TierMinima[tier]
	total := func() int {
		sum := 0
		for _, n := range fill {
			sum += n
		}
		return sum
	}
	for total() > capacityFill {
		reduced := false
		for _, subj := range q.rules.ShaveOrder {
			n, ok := fill[subj]
			if !ok {
				continue
			}
			min := 1
			if m, ok := mins[subj]; ok {
				min = m
			}
			if n > min && total() > capacityFill {
				fill[subj] = n - 1
				reduced = true
			}
			if total() <= capacityFill {
				break
			}
		}
		if !reduced {
			break
		}
	}
	return fill
}

// Minima returns the tier's shave floors.
func (q *QuotaEngine) Minima(class string) map[string]int {
	tier := q.rules.TierOf(class)
	out := make(map[string]int, len(q.rules.TierMinima[tier]))
	for subj, n := range q.rules.TierMinima[tier] {
		out[subj] = n
	}
	return out
}

// Maxima mirrors Normalized with upper slack: +1 capped at the weekly
// ceiling, except core and floor-bound subjects which stay exact and
// seeded subjects which keep their target.
func (q *QuotaEngine) Maxima(class string) map[string]int {
	tier := q.rules.TierOf(class)
	base := q.Normalized(class)
	cap := q.rules.WeeklyCapOrDefault()
	reserved := q.rules.ReservedSubjects()

	out := make(map[string]int, len(base))
	for subj, tgt := range base {
		if floor, ok := q.rules.CoreFloors[subj]; ok {
			out[subj] = floor
			continue
		}
		if floor, ok := q.rules.TierFloors[tier][subj]; ok {
			out[subj] = floor
			continue
		}
		if _, ok := reserved[subj]; ok {
			out[subj] = tgt
			continue
		}
		out[subj] = minInt(cap, tgt+1)
	}
	return out
}

// SoftMaxima is the slack ceiling the filler's second pass honours: one
// above target, capped, with core subjects allowed one extra period.
func (q *QuotaEngine) SoftMaxima(class string) map[string]int {
	base := q.Normalized(class)
	cap := q.rules.WeeklyCapOrDefault()
	out := make(map[string]int, len(base))
	for subj, tgt := range base {
		if _, ok := q.rules.CoreFloors[subj]; ok {
			out[subj] = cap + 1
			continue
		}
		out[subj] = minInt(cap, tgt+1)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
