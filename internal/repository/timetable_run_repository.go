package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// TimetableRunRepository persists versioned generation runs.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs the repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a run assigning the next version for the term.
func (r *TimetableRunRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.TermID == "" {
		return fmt.Errorf("term_id is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.TimetableRunStatusDraft
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_runs WHERE term_id = $1`
	if err := sqlx.GetContext(ctx, target, &run.Version, nextVersionQuery, run.TermID); err != nil {
		return fmt.Errorf("compute next timetable run version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_runs (id, term_id, version, status, meta, created_at, updated_at)
VALUES (:id, :term_id, :version, :status, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// ListByTerm returns all run versions for a term, newest first.
func (r *TimetableRunRepository) ListByTerm(ctx context.Context, termID string) ([]models.TimetableRun, error) {
	const query = `SELECT id, term_id, version, status, meta, created_at, updated_at
FROM timetable_runs WHERE term_id = $1 ORDER BY version DESC`
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, termID); err != nil {
		return nil, fmt.Errorf("list timetable runs: %w", err)
	}
	return runs, nil
}

// FindByID loads a run by its identifier.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	const query = `SELECT id, term_id, version, status, meta, created_at, updated_at FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// Delete removes a stored run. Slots cascade via foreign key.
func (r *TimetableRunRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetable_runs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus transitions a run's lifecycle status.
func (r *TimetableRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error {
	target := r.exec(exec)
	const query = `UPDATE timetable_runs SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := target.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
