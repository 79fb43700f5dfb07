package models

import "sort"

// Timetable is the sparse weekly grid: at most one assignment per cell.
type Timetable struct {
	cells map[CellKey]Assignment
}

// NewTimetable returns an empty grid.
func NewTimetable() *Timetable {
	return &Timetable{cells: make(map[CellKey]Assignment)}
}

// Place stores the assignment at its cell, replacing any previous occupant.
func (t *Timetable) Place(a Assignment) {
	t.cells[a.Key()] = a
}

// Get returns the assignment at a cell.
func (t *Timetable) Get(class, day, slotID string) (Assignment, bool) {
	a, ok := t.cells[CellKey{Class: class, Day: day, SlotID: slotID}]
	return a, ok
}

// Occupied reports whether the cell holds an assignment.
func (t *Timetable) Occupied(class, day, slotID string) bool {
	_, ok := t.cells[CellKey{Class: class, Day: day, SlotID: slotID}]
	return ok
}

// Remove clears a cell. Removing an empty cell is a no-op.
func (t *Timetable) Remove(class, day, slotID string) {
	delete(t.cells, CellKey{Class: class, Day: day, SlotID: slotID})
}

// Len returns the number of occupied cells.
func (t *Timetable) Len() int {
	return len(t.cells)
}

// All returns every assignment in unspecified order.
func (t *Timetable) All() []Assignment {
	out := make([]Assignment, 0, len(t.cells))
	for _, a := range t.cells {
		out = append(out, a)
	}
	return out
}

// ForClass returns the class's assignments in unspecified order.
func (t *Timetable) ForClass(class string) []Assignment {
	out := make([]Assignment, 0, 48)
	for k, a := range t.cells {
		if k.Class == class {
			out = append(out, a)
		}
	}
	return out
}

// ForClassDay returns the class's assignments for one day.
func (t *Timetable) ForClassDay(class, day string) []Assignment {
	out := make([]Assignment, 0, 10)
	for k, a := range t.cells {
		if k.Class == class && k.Day == day {
			out = append(out, a)
		}
	}
	return out
}

// AtTime returns all assignments in the given (day, slot) column across classes.
func (t *Timetable) AtTime(day, slotID string) []Assignment {
	out := make([]Assignment, 0, 20)
	for k, a := range t.cells {
		if k.Day == day && k.SlotID == slotID {
			out = append(out, a)
		}
	}
	return out
}

// Sorted returns all assignments ordered by class, day, then slot ID.
// Day order follows the supplied week; slot order follows the daily template.
func (t *Timetable) Sorted(days []string, slots []TimeSlot) []Assignment {
	dayIdx := make(map[string]int, len(days))
	for i, d := range days {
		dayIdx[d] = i
	}
	slotIdx := SlotOrder(slots)
	out := t.All()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		if dayIdx[out[i].Day] != dayIdx[out[j].Day] {
			return dayIdx[out[i].Day] < dayIdx[out[j].Day]
		}
		return slotIdx[out[i].SlotID] < slotIdx[out[j].SlotID]
	})
	return out
}

// Snapshot copies the cell map for state-restore assertions in tests and
// speculative-move verification.
func (t *Timetable) Snapshot() map[CellKey]Assignment {
	out := make(map[CellKey]Assignment, len(t.cells))
	for k, a := range t.cells {
		out[k] = a
	}
	return out
}
