package models

// CellKey addresses one cell of the weekly grid.
type CellKey struct {
	Class  string
	Day    string
	SlotID string
}

// Assignment binds a subject, and optionally a teacher, to a grid cell.
// Pinned assignments belong to the seeded skeleton and are never moved by
// the repair engine. An empty Teacher means the subject needs no teacher.
type Assignment struct {
	Class   string `json:"class"`
	Day     string `json:"day"`
	SlotID  string `json:"slotId"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher,omitempty"`
	Pinned  bool   `json:"pinned,omitempty"`
}

// Key returns the cell address of the assignment.
func (a Assignment) Key() CellKey {
	return CellKey{Class: a.Class, Day: a.Day, SlotID: a.SlotID}
}
