package scheduler

// busyKey identifies one occupied (owner, day, slot) combination.
type busyKey struct {
	Owner  string
	Day    string
	SlotID string
}

// Ledger is the O(1) conflict-check index mirroring the grid's occupancy.
// Every grid mutation must be paired with the matching Place/Remove call;
// speculative probes release, check, and re-acquire through the same pairs.
type Ledger struct {
	classBusy   map[busyKey]struct{}
	teacherBusy map[busyKey]struct{}
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		classBusy:   make(map[busyKey]struct{}),
		teacherBusy: make(map[busyKey]struct{}),
	}
}

// CanPlace reports whether the class cell is free and, when a teacher is
// given, whether the teacher is free at that time. Subject identity is
// deliberately not tracked: two classes may run the same subject at the
// same time, which scoring discourages but never blocks.
func (l *Ledger) CanPlace(teacher, class, day, slotID string) bool {
	if _, busy := l.classBusy[busyKey{class, day, slotID}]; busy {
		return false
	}
	if teacher == "" {
		return true
	}
	_, busy := l.teacherBusy[busyKey{teacher, day, slotID}]
	return !busy
}

// TeacherBusy reports whether the teacher is already booked at the time.
func (l *Ledger) TeacherBusy(teacher, day, slotID string) bool {
	if teacher == "" {
		return false
	}
	_, busy := l.teacherBusy[busyKey{teacher, day, slotID}]
	return busy
}

// Place marks the cell, and the teacher when given, as busy.
func (l *Ledger) Place(teacher, class, day, slotID string) {
	l.classBusy[busyKey{class, day, slotID}] = struct{}{}
	if teacher != "" {
		l.teacherBusy[busyKey{teacher, day, slotID}] = struct{}{}
	}
}

// Remove releases the cell, and the teacher when given.
func (l *Ledger) Remove(teacher, class, day, slotID string) {
	delete(l.classBusy, busyKey{class, day, slotID})
	if teacher != "" {
		delete(l.teacherBusy, busyKey{teacher, day, slotID})
	}
}

// Counts returns the number of busy class cells and teacher bookings.
func (l *Ledger) Counts() (classes, teachers int) {
	return len(l.classBusy), len(l.teacherBusy)
}
