package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableRunStatus tracks the lifecycle of a persisted run.
type TimetableRunStatus string

const (
	TimetableRunStatusDraft     TimetableRunStatus = "DRAFT"
	TimetableRunStatusPublished TimetableRunStatus = "PUBLISHED"
)

// TimetableRun is a persisted generation result for a term, versioned per term.
type TimetableRun struct {
	ID        string             `db:"id" json:"id"`
	TermID    string             `db:"term_id" json:"term_id"`
	Version   int                `db:"version" json:"version"`
	Status    TimetableRunStatus `db:"status" json:"status"`
	Meta      types.JSONText     `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is one persisted grid cell of a run.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Class     string    `db:"class" json:"class"`
	Day       string    `db:"day" json:"day"`
	SlotID    string    `db:"slot_id" json:"slot_id"`
	Subject   string    `db:"subject" json:"subject"`
	Teacher   string    `db:"teacher" json:"teacher"`
	Pinned    bool      `db:"pinned" json:"pinned"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
