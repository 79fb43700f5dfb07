package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// TimetableSlotRepository persists the grid cells of a stored run.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository constructs the repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch writes the run's cells, replacing any existing cell at the
// same (run, class, day, slot) coordinate.
func (r *TimetableSlotRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (id, run_id, class, day, slot_id, subject, teacher, pinned, created_at)
VALUES (:id, :run_id, :class, :day, :slot_id, :subject, :teacher, :pinned, :created_at)
ON CONFLICT (run_id, class, day, slot_id)
DO UPDATE SET subject = EXCLUDED.subject, teacher = EXCLUDED.teacher, pinned = EXCLUDED.pinned`
	for i := range slots {
		if slots[i].ID == "" {
			slots[i].ID = uuid.NewString()
		}
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = now
		}
	}
	if _, err := sqlx.NamedExecContext(ctx, target, query, slots); err != nil {
		return fmt.Errorf("upsert timetable slots: %w", err)
	}
	return nil
}

// ListByRun returns the run's cells ordered for stable rendering.
func (r *TimetableSlotRepository) ListByRun(ctx context.Context, runID string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, run_id, class, day, slot_id, subject, teacher, pinned, created_at
FROM timetable_slots WHERE run_id = $1 ORDER BY class, day, slot_id`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}
