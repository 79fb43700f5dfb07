package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/validate"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/export"
)

type timetableRunRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	ListByTerm(ctx context.Context, termID string) ([]models.TimetableRun, error)
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error
}

type timetableSlotRepository interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByRun(ctx context.Context, runID string) ([]models.TimetableSlot, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type engineRunner interface {
	Run(ctx context.Context, in *scheduler.Instance) (*scheduler.Result, error)
}

// GeneratorConfig carries the engine tuning knobs the service applies to
// every instance unless the request overrides them.
type GeneratorConfig struct {
	Search      scheduler.SearchParams
	Weights     scheduler.Weights
	ProposalTTL time.Duration
}

// GeneratorService runs the scheduling engine, keeps proposals under TTL,
// and persists accepted grids as versioned runs.
type GeneratorService struct {
	engine    engineRunner
	runs      timetableRunRepository
	slots     timetableSlotRepository
	tx        txProvider
	store     ProposalStore
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       GeneratorConfig
}

// NewGeneratorService wires the generator dependencies.
func NewGeneratorService(
	engine engineRunner,
	runs timetableRunRepository,
	slots timetableSlotRepository,
	tx txProvider,
	store ProposalStore,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg GeneratorConfig,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryProposalStore(cfg.ProposalTTL)
	}
	return &GeneratorService{
		engine:    engine,
		runs:      runs,
		slots:     slots,
		tx:        tx,
		store:     store,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Generate runs the full pipeline for the requested instance and stores
// the best grid as a TTL-bound proposal.
func (s *GeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	in := s.buildInstance(req)
	start := time.Now()
	result, err := s.engine.Run(ctx, in)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "instance rejected")
	}
	duration := time.Since(start)
	s.metrics.ObserveGeneration(duration, result.Cost, result.Metrics.Blanks, result.Converged())

	report := validate.Check(result.Timetable, in)
	resp := &dto.GenerateTimetableResponse{
		ProposalID:        uuid.NewString(),
		TermID:            req.TermID,
		Slots:             exportAssignments(result.Timetable, in),
		Metrics:           result.Metrics,
		Cost:              result.Cost,
		Converged:         result.Converged(),
		Restart:           result.Restart,
		Seed:              result.Seed,
		RelaxedClasses:    result.RelaxedClasses,
		InfeasibleClasses: result.InfeasibleClasses,
		Audit:             result.Audit,
		Validation:        report,
		RequestedAt:       time.Now().UTC(),
	}

	if err := s.store.Save(ctx, timetableProposal{Response: *resp, Days: req.Days, Slots: req.Slots}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proposal")
	}

	s.logger.Info("timetable generated",
		zap.String("proposalId", resp.ProposalID),
		zap.String("termId", req.TermID),
		zap.Duration("duration", duration),
		zap.Int("cost", resp.Cost),
		zap.Int("blanks", resp.Metrics.Blanks),
		zap.Bool("converged", resp.Converged),
	)
	return resp, nil
}

// Save persists a proposal as a versioned run. Publishing requires a grid
// free of hard violations and of structurally infeasible classes.
func (s *GeneratorService) Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}
	proposal, ok, err := s.store.Get(ctx, req.ProposalID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if req.Publish {
		if proposal.Response.Metrics.Conflicts() > 0 || proposal.Response.Metrics.WindowViolations > 0 {
			return "", appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved hard violations")
		}
		if len(proposal.Response.InfeasibleClasses) > 0 {
			return "", appErrors.Clone(appErrors.ErrInfeasible, "")
		}
		if proposal.Response.Metrics.Blanks > 0 {
			return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal still has blank periods")
		}
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	meta := map[string]interface{}{
		"cost":              proposal.Response.Cost,
		"metrics":           proposal.Response.Metrics,
		"seed":              proposal.Response.Seed,
		"restart":           proposal.Response.Restart,
		"relaxedClasses":    proposal.Response.RelaxedClasses,
		"infeasibleClasses": proposal.Response.InfeasibleClasses,
		"generated":         proposal.Response.RequestedAt,
		"days":              proposal.Days,
		"slotTemplate":      proposal.Slots,
		"algorithm":         "heuristic_v2",
	}
	metaBytes, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
		return "", err
	}

	run := &models.TimetableRun{
		TermID: proposal.Response.TermID,
		Status: models.TimetableRunStatusDraft,
		Meta:   types.JSONText(metaBytes),
	}
	if err = s.runs.CreateVersioned(ctx, tx, run); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable run")
		return "", err
	}

	slotModels := make([]models.TimetableSlot, 0, len(proposal.Response.Slots))
	for _, cell := range proposal.Response.Slots {
		slotModels = append(slotModels, models.TimetableSlot{
			RunID:   run.ID,
			Class:   cell.Class,
			Day:     cell.Day,
			SlotID:  cell.SlotID,
			Subject: cell.Subject,
			Teacher: cell.Teacher,
			Pinned:  cell.Pinned,
		})
	}
	if err = s.slots.UpsertBatch(ctx, tx, slotModels); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return "", err
	}

	if req.Publish {
		if err = s.runs.UpdateStatus(ctx, tx, run.ID, models.TimetableRunStatusPublished); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable run")
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable run")
		return "", err
	}

	_ = s.store.Delete(ctx, req.ProposalID)
	return run.ID, nil
}

// List returns stored runs for a term, newest version first.
func (s *GeneratorService) List(ctx context.Context, query dto.TimetableQuery) ([]models.TimetableRun, error) {
	if query.TermID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "termId is required")
	}
	runs, err := s.runs.ListByTerm(ctx, query.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable runs")
	}
	return runs, nil
}

// GetSlots returns the stored grid of one run.
func (s *GeneratorService) GetSlots(ctx context.Context, runID string) ([]models.TimetableSlot, error) {
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run id is required")
	}
	if _, err := s.runs.FindByID(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	slots, err := s.slots.ListByRun(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	return slots, nil
}

// Delete removes a draft run.
func (s *GeneratorService) Delete(ctx context.Context, runID string) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	if run.Status != models.TimetableRunStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft runs can be deleted")
	}
	if err := s.runs.Delete(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable run")
	}
	return nil
}

// ExportCSV streams the stored run as per-class CSV blocks, ordered by
// the day and slot template captured at save time.
func (s *GeneratorService) ExportCSV(ctx context.Context, runID string, w io.Writer) error {
	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	slots, err := s.slots.ListByRun(ctx, runID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}

	var meta struct {
		Days         []string          `json:"days"`
		SlotTemplate []dto.SlotPayload `json:"slotTemplate"`
	}
	if err := json.Unmarshal(run.Meta, &meta); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode run metadata")
	}

	template := make([]export.Slot, 0, len(meta.SlotTemplate))
	for _, s := range meta.SlotTemplate {
		template = append(template, export.Slot{ID: s.ID, Start: s.Start, End: s.End})
	}
	cells := make([]export.Cell, 0, len(slots))
	classSet := make(map[string]struct{})
	for _, slot := range slots {
		cells = append(cells, export.Cell{
			Class: slot.Class, Day: slot.Day, SlotID: slot.SlotID,
			Subject: slot.Subject, Teacher: slot.Teacher,
		})
		classSet[slot.Class] = struct{}{}
	}
	classes := make([]string, 0, len(classSet))
	for class := range classSet {
		classes = append(classes, class)
	}
	if err := export.WriteBlocks(w, cells, classes, meta.Days, template); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
	}
	return nil
}

// buildInstance maps the request onto the engine's instance, applying the
// configured weights and search budgets under any request overrides.
func (s *GeneratorService) buildInstance(req dto.GenerateTimetableRequest) *scheduler.Instance {
	slots := make([]models.TimeSlot, 0, len(req.Slots))
	for _, p := range req.Slots {
		slots = append(slots, models.TimeSlot{
			ID:           p.ID,
			Start:        p.Start,
			End:          p.End,
			Type:         models.SlotType(p.Type),
			Label:        p.Label,
			FixedSubject: p.FixedSubject,
		})
	}
	teachers := make([]models.TeacherRecord, 0, len(req.Teachers))
	for _, t := range req.Teachers {
		teachers = append(teachers, models.TeacherRecord{
			ID:            t.ID,
			Name:          t.Name,
			Subjects:      t.Subjects,
			ClassPrefixes: t.ClassPrefixes,
			Role:          t.Role,
		})
	}

	weights := s.cfg.Weights
	if req.Weights != nil {
		weights = scheduler.Weights{
			Blank:           req.Weights.Blank,
			TeacherConflict: req.Weights.TeacherConflict,
			ClassConflict:   req.Weights.ClassConflict,
			WindowViolation: req.Weights.WindowViolation,
			AdjacentRepeat:  req.Weights.AdjacentRepeat,
			SameSlotRepeat:  req.Weights.SameSlotRepeat,
			FallbackSubject: req.Weights.FallbackSubject,
			TeacherIdleGap:  req.Weights.TeacherIdleGap,
		}
	}
	search := s.cfg.Search
	if req.Search != nil {
		if req.Search.Restarts > 0 {
			search.Restarts = req.Search.Restarts
		}
		if req.Search.MaxRepairPasses > 0 {
			search.MaxRepairPasses = req.Search.MaxRepairPasses
		}
		if req.Search.MaxSwaps > 0 {
			search.MaxSwaps = req.Search.MaxSwaps
		}
		if req.Search.TabuSize > 0 {
			search.TabuSize = req.Search.TabuSize
		}
		if req.Search.BaseSeed != 0 {
			search.BaseSeed = req.Search.BaseSeed
		}
		if len(req.Search.Neighborhoods) > 0 {
			search.Neighborhoods = req.Search.Neighborhoods
		}
	}

	return &scheduler.Instance{
		Classes:       req.Classes,
		Days:          req.Days,
		Slots:         slots,
		Teachers:      teachers,
		ClassTeachers: req.ClassTeachers,
		Rules:         req.Rules,
		Weights:       weights,
		Search:        search,
	}
}

func exportAssignments(tt *models.Timetable, in *scheduler.Instance) []dto.SlotAssignment {
	sorted := tt.Sorted(in.Days, in.Slots)
	out := make([]dto.SlotAssignment, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, dto.SlotAssignment{
			Class:   a.Class,
			Day:     a.Day,
			SlotID:  a.SlotID,
			Subject: a.Subject,
			Teacher: a.Teacher,
			Pinned:  a.Pinned,
		})
	}
	return out
}
