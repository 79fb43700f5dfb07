package scheduler

import "github.com/noah-isme/sma-timetable-engine/internal/models"

// moveKey identifies a recently applied move: a single-cell relocation or
// a pairwise swap. For swaps the lexicographically smaller cell goes in A
// so both directions hash to the same key.
type moveKey struct {
	Kind string
	A, B models.CellKey
}

func singleMove(kind string, cell models.CellKey) moveKey {
	return moveKey{Kind: kind, A: cell}
}

func swapMove(kind string, a, b models.CellKey) moveKey {
	if cellLess(b, a) {
		a, b = b, a
	}
	return moveKey{Kind: kind, A: a, B: b}
}

func cellLess(a, b models.CellKey) bool {
	if a.Class != b.Class {
		return a.Class < b.Class
	}
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.SlotID < b.SlotID
}

// tabuList is the bounded most-recent-K move memory. A listed move is
// discouraged from immediate reversal; entries pushed out of the window
// are unrestricted again.
type tabuList struct {
	size  int
	order []moveKey
	set   map[moveKey]struct{}
}

func newTabuList(size int) *tabuList {
	if size <= 0 {
		size = 1
	}
	return &tabuList{size: size, set: make(map[moveKey]struct{}, size)}
}

func (t *tabuList) Contains(k moveKey) bool {
	_, ok := t.set[k]
	return ok
}

// Add records the move, evicting the oldest entry once the window is full.
func (t *tabuList) Add(k moveKey) {
	if _, dup := t.set[k]; dup {
		return
	}
	if len(t.order) >= t.size {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.set, oldest)
	}
	t.order = append(t.order, k)
	t.set[k] = struct{}{}
}

func (t *tabuList) Len() int {
	return len(t.order)
}
