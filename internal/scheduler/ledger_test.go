package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerPlaceAndRemove(t *testing.T) {
	l := NewLedger()

	assert.True(t, l.CanPlace("Sari", "7A", "Mon", "P1"))
	l.Place("Sari", "7A", "Mon", "P1")

	assert.False(t, l.CanPlace("Sari", "7B", "Mon", "P1"), "teacher is booked")
	assert.False(t, l.CanPlace("Budi", "7A", "Mon", "P1"), "class cell is taken")
	assert.True(t, l.CanPlace("Sari", "7A", "Mon", "P2"))
	assert.True(t, l.TeacherBusy("Sari", "Mon", "P1"))

	l.Remove("Sari", "7A", "Mon", "P1")
	assert.True(t, l.CanPlace("Sari", "7B", "Mon", "P1"))
	assert.False(t, l.TeacherBusy("Sari", "Mon", "P1"))
}

func TestLedgerTeacherlessCells(t *testing.T) {
	l := NewLedger()
	l.Place("", "7A", "Mon", "P1")

	assert.False(t, l.CanPlace("", "7A", "Mon", "P1"))
	assert.True(t, l.CanPlace("Sari", "7B", "Mon", "P1"), "no teacher booking recorded")
	assert.False(t, l.TeacherBusy("", "Mon", "P1"))

	classes, teachers := l.Counts()
	assert.Equal(t, 1, classes)
	assert.Equal(t, 0, teachers)
}

func TestLedgerProbePattern(t *testing.T) {
	l := NewLedger()
	l.Place("Sari", "7A", "Mon", "P1")

	// Remove, check, place back: the grid must read identically afterwards.
	l.Remove("Sari", "7A", "Mon", "P1")
	assert.True(t, l.CanPlace("Sari", "7B", "Mon", "P1"))
	l.Place("Sari", "7A", "Mon", "P1")

	assert.False(t, l.CanPlace("Sari", "7B", "Mon", "P1"))
	classes, teachers := l.Counts()
	assert.Equal(t, 1, classes)
	assert.Equal(t, 1, teachers)
}
