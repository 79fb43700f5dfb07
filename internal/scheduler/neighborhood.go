package scheduler

import (
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// undoLog records speculative grid/ledger mutations so every exit path
// can revert to a checkpoint with exactly one undo per operation.
type undoLog struct {
	r   *repairer
	ops []func()
}

func (u *undoLog) take(a models.Assignment) {
	u.r.take(a)
	u.ops = append(u.ops, func() { u.r.put(a) })
}

func (u *undoLog) put(a models.Assignment) {
	u.r.put(a)
	u.ops = append(u.ops, func() { u.r.take(a) })
}

func (u *undoLog) mark() int {
	return len(u.ops)
}

func (u *undoLog) rollbackTo(mark int) {
	for i := len(u.ops) - 1; i >= mark; i-- {
		u.ops[i]()
	}
	u.ops = u.ops[:mark]
}

func (u *undoLog) rollback() {
	u.rollbackTo(0)
}

func (u *undoLog) commit() {
	u.ops = nil
}

// neighborhoodLoop drives the global cost-directed search: blank repair is
// prioritized while blanks remain, otherwise a random enabled neighborhood
// is tried. The loop stops at zero cost, on budget exhaustion, or after a
// streak of failed attempts long enough to signal a local fixpoint.
func (r *repairer) neighborhoodLoop() {
	enabled := r.params.Neighborhoods
	if len(enabled) == 0 {
		return
	}
	maxFailures := 4 * len(enabled)
	failures := 0
	for r.swapsLeft > 0 && failures < maxFailures {
		m := ComputeMetrics(r.tt, r.in)
		if r.weights.TotalCost(m) == 0 {
			return
		}
		name := enabled[r.rng.Intn(len(enabled))]
		if m.Blanks > 0 && containsString(enabled, NeighborhoodBlankChain) {
			name = NeighborhoodBlankChain
		}
		applied := r.applyNeighborhood(name)
		r.swapsLeft--
		if applied {
			failures = 0
		} else {
			failures++
		}
	}
}

func (r *repairer) applyNeighborhood(name string) bool {
	switch name {
	case NeighborhoodBlankChain:
		return r.moveBlankChain()
	case NeighborhoodKempeSwap:
		return r.moveKempeSwap()
	case NeighborhoodClassDay:
		return r.moveClassDay()
	case NeighborhoodClassPeriod:
		return r.moveClassPeriod()
	case NeighborhoodStuckClass:
		return r.moveStuckClass()
	default:
		return false
	}
}

// speculative runs a mutation inside an undo log, keeps it when accept
// approves the cost delta, and reverts it otherwise.
func (r *repairer) speculative(accept func(before, after int) bool, mutate func(u *undoLog) bool) bool {
	before := r.cost()
	u := &undoLog{r: r}
	if !mutate(u) {
		u.rollback()
		return false
	}
	after := r.cost()
	if accept(before, after) {
		u.commit()
		return true
	}
	u.rollback()
	return false
}

func nonIncreasing(before, after int) bool { return after <= before }
func improving(before, after int) bool     { return after < before }

// blankCells lists every open teaching cell outside fixed columns.
func (r *repairer) blankCells() []models.CellKey {
	var out []models.CellKey
	for _, class := range r.in.Classes {
		for _, day := range r.in.Days {
			for _, slot := range r.teaching {
				if _, fx := r.fixed[dayCell{day, slot.ID}]; fx {
					continue
				}
				if !r.tt.Occupied(class, day, slot.ID) {
					out = append(out, models.CellKey{Class: class, Day: day, SlotID: slot.ID})
				}
			}
		}
	}
	return out
}

// moveBlankChain fills one blank cell, relocating a blocking teacher's
// other booking through a bounded ejection chain when needed. Accepted
// only when blanks strictly decrease, which the chain guarantees: every
// relocation preserves cell count and the final placement fills the blank.
func (r *repairer) moveBlankChain() bool {
	blanks := r.blankCells()
	if len(blanks) == 0 {
		return false
	}
	for attempt := 0; attempt < r.params.ChainAttempts; attempt++ {
		cell := blanks[r.rng.Intn(len(blanks))]
		if r.fillBlankViaChain(cell) {
			return true
		}
	}
	return false
}

func (r *repairer) fillBlankViaChain(cell models.CellKey) bool {
	key := singleMove("chain", cell)
	if r.tabu.Contains(key) {
		return false
	}
	def := r.deficits(cell.Class)
	ordered := sortedKeys(r.quota.Normalized(cell.Class))
	sort.SliceStable(ordered, func(i, j int) bool {
		if def[ordered[i]] != def[ordered[j]] {
			return def[ordered[i]] > def[ordered[j]]
		}
		return r.in.Rules.Priority(ordered[i]) > r.in.Rules.Priority(ordered[j])
	})
	for _, subj := range ordered {
		if !r.dayAdmits(subj, cell.Class, cell.Day) {
			continue
		}
		for _, cand := range r.dir.CandidatesFor(subj, cell.Class) {
			if r.ledger.CanPlace(cand, cell.Class, cell.Day, cell.SlotID) {
				r.put(models.Assignment{Class: cell.Class, Day: cell.Day, SlotID: cell.SlotID, Subject: subj, Teacher: cand})
				r.tabu.Add(key)
				r.audit.logf("chain fill %s %s %s -> %s (%s)", cell.Class, cell.Day, cell.SlotID, subj, cand)
				return true
			}
			blocker, ok := r.teacherBookingAt(cand, cell.Day, cell.SlotID)
			if !ok || blocker.Pinned {
				continue
			}
			u := &undoLog{r: r}
			nodes := r.params.ChainNodes
			if !r.relocate(u, blocker, r.params.ChainDepth, &nodes) {
				continue
			}
			if !r.ledger.CanPlace(cand, cell.Class, cell.Day, cell.SlotID) {
				u.rollback()
				continue
			}
			u.put(models.Assignment{Class: cell.Class, Day: cell.Day, SlotID: cell.SlotID, Subject: subj, Teacher: cand})
			u.commit()
			r.tabu.Add(key)
			r.audit.logf("chain fill %s %s %s -> %s (%s), ejected %s %s %s", cell.Class, cell.Day, cell.SlotID, subj, cand, blocker.Class, blocker.Day, blocker.SlotID)
			return true
		}
	}
	return false
}

// teacherBookingAt finds the assignment holding the teacher at a time.
func (r *repairer) teacherBookingAt(teacher, day, slotID string) (models.Assignment, bool) {
	if teacher == "" {
		return models.Assignment{}, false
	}
	for _, a := range r.tt.AtTime(day, slotID) {
		if a.Teacher == teacher {
			return a, true
		}
	}
	return models.Assignment{}, false
}

// relocate moves the assignment to another legal cell of its class,
// recursively ejecting a non-pinned occupant within the depth and node
// budgets. On failure the undo log is rolled back to the entry state.
func (r *repairer) relocate(u *undoLog, a models.Assignment, depth int, nodes *int) bool {
	if depth <= 0 || *nodes <= 0 {
		return false
	}
	start := u.mark()
	u.take(a)
	for _, day := range r.in.Days {
		for _, slot := range r.teaching {
			if *nodes <= 0 {
				u.rollbackTo(start)
				return false
			}
			*nodes--
			if day == a.Day && slot.ID == a.SlotID {
				continue
			}
			if _, fx := r.fixed[dayCell{day, slot.ID}]; fx {
				continue
			}
			if !r.dayAdmits(a.Subject, a.Class, day) {
				continue
			}
			mark := u.mark()
			if occ, occupied := r.tt.Get(a.Class, day, slot.ID); occupied {
				if occ.Pinned {
					continue
				}
				if !r.relocate(u, occ, depth-1, nodes) {
					continue
				}
			}
			teacher, ok := r.freeTeacher(a, day, slot.ID)
			if !ok {
				u.rollbackTo(mark)
				continue
			}
			u.put(models.Assignment{Class: a.Class, Day: day, SlotID: slot.ID, Subject: a.Subject, Teacher: teacher})
			return true
		}
	}
	u.rollbackTo(start)
	return false
}

// freeTeacher keeps the assignment's teacher when still free at the new
// time, otherwise falls back to any free eligible candidate.
func (r *repairer) freeTeacher(a models.Assignment, day, slotID string) (string, bool) {
	if r.ledger.CanPlace(a.Teacher, a.Class, day, slotID) {
		return a.Teacher, true
	}
	for _, cand := range r.dir.CandidatesFor(a.Subject, a.Class) {
		if r.ledger.CanPlace(cand, a.Class, day, slotID) {
			return cand, true
		}
	}
	return "", false
}

// moveKempeSwap targets a blank or an adjacency hotspot and swaps a
// candidate subject in by displacing the teacher's conflicting booking,
// accepted when the objective does not increase.
func (r *repairer) moveKempeSwap() bool {
	cell, ok := r.kempeTarget()
	if !ok {
		return false
	}
	key := singleMove("kempe", cell)
	if r.tabu.Contains(key) {
		return false
	}
	def := r.deficits(cell.Class)
	ordered := sortedKeys(r.quota.Normalized(cell.Class))
	sort.SliceStable(ordered, func(i, j int) bool {
		return def[ordered[i]] > def[ordered[j]]
	})
	applied := r.speculative(nonIncreasing, func(u *undoLog) bool {
		if occ, occupied := r.tt.Get(cell.Class, cell.Day, cell.SlotID); occupied {
			if occ.Pinned {
				return false
			}
			nodes := r.params.KempeNodes
			if !r.relocate(u, occ, 2, &nodes) {
				return false
			}
		}
		for _, subj := range ordered {
			if !r.dayAdmits(subj, cell.Class, cell.Day) {
				continue
			}
			for _, cand := range r.dir.CandidatesFor(subj, cell.Class) {
				mark := u.mark()
				if !r.ledger.CanPlace(cand, cell.Class, cell.Day, cell.SlotID) {
					blocker, found := r.teacherBookingAt(cand, cell.Day, cell.SlotID)
					if !found || blocker.Pinned {
						continue
					}
					nodes := r.params.KempeNodes
					if !r.relocate(u, blocker, r.params.KempeDepth, &nodes) {
						continue
					}
					if !r.ledger.CanPlace(cand, cell.Class, cell.Day, cell.SlotID) {
						u.rollbackTo(mark)
						continue
					}
				}
				u.put(models.Assignment{Class: cell.Class, Day: cell.Day, SlotID: cell.SlotID, Subject: subj, Teacher: cand})
				return true
			}
		}
		return false
	})
	if applied {
		r.tabu.Add(key)
		r.audit.logf("kempe swap at %s %s %s", cell.Class, cell.Day, cell.SlotID)
	}
	return applied
}

// kempeTarget picks a blank first, otherwise a cell from an adjacent
// repeat pair.
func (r *repairer) kempeTarget() (models.CellKey, bool) {
	if blanks := r.blankCells(); len(blanks) > 0 {
		return blanks[r.rng.Intn(len(blanks))], true
	}
	if hotspots := r.adjacencyHotspots(); len(hotspots) > 0 {
		return hotspots[r.rng.Intn(len(hotspots))], true
	}
	return models.CellKey{}, false
}

// adjacencyHotspots returns the later cell of every same-subject
// back-to-back pair, skipping pinned cells.
func (r *repairer) adjacencyHotspots() []models.CellKey {
	var out []models.CellKey
	for _, class := range r.in.Classes {
		for _, day := range r.in.Days {
			cells := dayCells(r.tt, class, day, r.order, r.skip)
			for i := 1; i < len(cells); i++ {
				if cells[i].Subject != cells[i-1].Subject {
					continue
				}
				if r.order[cells[i].SlotID]-r.order[cells[i-1].SlotID] != 1 {
					continue
				}
				if cells[i].Pinned {
					continue
				}
				out = append(out, cells[i].Key())
			}
		}
	}
	return out
}

// moveClassDay relocates the later cell of a random adjacent repeat to a
// different period, accepted only on strict improvement.
func (r *repairer) moveClassDay() bool {
	hotspots := r.adjacencyHotspots()
	if len(hotspots) == 0 {
		return false
	}
	cell := hotspots[r.rng.Intn(len(hotspots))]
	a, ok := r.tt.Get(cell.Class, cell.Day, cell.SlotID)
	if !ok {
		return false
	}
	key := singleMove("disperse_day", cell)
	if r.tabu.Contains(key) {
		return false
	}
	applied := r.speculative(improving, func(u *undoLog) bool {
		nodes := r.params.ChainNodes
		return r.relocate(u, a, 2, &nodes)
	})
	if applied {
		r.tabu.Add(key)
		r.audit.logf("disperse %s %s: moved %s off %s", cell.Class, cell.Day, a.Subject, cell.SlotID)
	}
	return applied
}

// sameSlotRepeatCells returns, per class, one movable cell for every
// subject occupying the same period on two or more days.
func (r *repairer) sameSlotRepeatCells(class string) []models.Assignment {
	bySlotSubject := make(map[[2]string][]models.Assignment)
	for _, a := range r.tt.ForClass(class) {
		if a.Pinned {
			continue
		}
		if _, excluded := r.skip[a.Subject]; excluded {
			continue
		}
		k := [2]string{a.SlotID, a.Subject}
		bySlotSubject[k] = append(bySlotSubject[k], a)
	}
	var out []models.Assignment
	for _, group := range bySlotSubject {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return cellLess(group[i].Key(), group[j].Key())
		})
		out = append(out, group[len(group)-1])
	}
	sort.Slice(out, func(i, j int) bool {
		return cellLess(out[i].Key(), out[j].Key())
	})
	return out
}

// moveClassPeriod relocates one occurrence of a cross-day same-period
// repeat toward the subject's least-used period.
func (r *repairer) moveClassPeriod() bool {
	class := r.in.Classes[r.rng.Intn(len(r.in.Classes))]
	return r.disperseSameSlot(class)
}

func (r *repairer) disperseSameSlot(class string) bool {
	repeats := r.sameSlotRepeatCells(class)
	if len(repeats) == 0 {
		return false
	}
	a := repeats[r.rng.Intn(len(repeats))]
	key := singleMove("disperse_period", a.Key())
	if r.tabu.Contains(key) {
		return false
	}
	target, ok := r.leastUsedPeriod(class, a.Subject, a.SlotID)
	if !ok {
		return false
	}
	applied := r.speculative(nonIncreasing, func(u *undoLog) bool {
		for _, day := range r.in.Days {
			if _, fx := r.fixed[dayCell{day, target}]; fx {
				continue
			}
			if r.tt.Occupied(class, day, target) {
				continue
			}
			if !r.dayAdmits(a.Subject, class, day) {
				continue
			}
			teacher, found := r.freeTeacher(a, day, target)
			if !found {
				continue
			}
			u.take(a)
			u.put(models.Assignment{Class: class, Day: day, SlotID: target, Subject: a.Subject, Teacher: teacher})
			return true
		}
		return false
	})
	if applied {
		r.tabu.Add(key)
		r.audit.logf("disperse %s %s: %s -> slot %s", class, a.Subject, a.SlotID, target)
	}
	return applied
}

// leastUsedPeriod finds the teaching period where the subject appears
// least for the class, excluding the one being vacated.
func (r *repairer) leastUsedPeriod(class, subject, exclude string) (string, bool) {
	usage := make(map[string]int, len(r.teaching))
	for _, s := range r.teaching {
		usage[s.ID] = 0
	}
	for _, a := range r.tt.ForClass(class) {
		if a.Subject == subject {
			usage[a.SlotID]++
		}
	}
	best, bestN, found := "", 0, false
	for _, s := range r.teaching {
		if s.ID == exclude {
			continue
		}
		if !found || usage[s.ID] < bestN {
			best, bestN, found = s.ID, usage[s.ID], true
		}
	}
	return best, found
}

// moveStuckClass targets the class with the most blanks and redistributes
// its same-period repeats.
func (r *repairer) moveStuckClass() bool {
	blanksByClass := make(map[string]int, len(r.in.Classes))
	for _, cell := range r.blankCells() {
		blanksByClass[cell.Class]++
	}
	stuck, most := "", 0
	for _, class := range r.in.Classes {
		if n := blanksByClass[class]; n > most {
			stuck, most = class, n
		}
	}
	if stuck == "" {
		return false
	}
	return r.disperseSameSlot(stuck)
}
