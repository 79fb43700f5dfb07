package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

func TestGeneratorServiceGenerateSuccess(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, "term-1", resp.TermID)
	assert.Len(t, resp.Slots, 1)
	assert.True(t, resp.Converged)
	require.NotNil(t, resp.Validation)
	assert.True(t, resp.Validation.Clean())
}

func TestGeneratorServiceGenerateRejectsMissingTerm(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{})

	req := generateRequest()
	req.TermID = ""
	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceGenerateEngineFailure(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{
		engine: engineStub{err: fmt.Errorf("instance: no teaching slots")},
	})

	_, err := svc.Generate(context.Background(), generateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceSaveDraft(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	svc, fx := newGeneratorFixture(t, generatorFixtureConfig{tx: tx})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, fx.runs.items, 1)
	assert.Equal(t, models.TimetableRunStatusDraft, fx.runs.items[0].Status)
	assert.Len(t, fx.slots.items[id], 1)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The proposal is consumed by a successful save.
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceSavePublish(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	svc, fx := newGeneratorFixture(t, generatorFixtureConfig{tx: tx})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	id, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID, Publish: true})
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunStatusPublished, fx.runs.items[0].Status)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneratorServicePublishRefusesBlanks(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{
		engine: engineStub{result: resultWithMetrics(scheduler.Metrics{Blanks: 2})},
	})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID, Publish: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServicePublishRefusesConflicts(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{
		engine: engineStub{result: resultWithMetrics(scheduler.Metrics{TeacherConflicts: 1})},
	})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID, Publish: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServicePublishRefusesInfeasible(t *testing.T) {
	res := resultWithMetrics(scheduler.Metrics{})
	res.InfeasibleClasses = []string{"7A"}
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{engine: engineStub{result: res}})

	resp, err := svc.Generate(context.Background(), generateRequest())
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID, Publish: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInfeasible.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceListRequiresTerm(t *testing.T) {
	svc, _ := newGeneratorFixture(t, generatorFixtureConfig{})

	_, err := svc.List(context.Background(), dto.TimetableQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceDeleteDraftOnly(t *testing.T) {
	svc, fx := newGeneratorFixture(t, generatorFixtureConfig{})
	fx.runs.items = []models.TimetableRun{
		{ID: "run-1", TermID: "term-1", Status: models.TimetableRunStatusPublished},
		{ID: "run-2", TermID: "term-1", Status: models.TimetableRunStatusDraft},
	}

	err := svc.Delete(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "run-2"))
	assert.Len(t, fx.runs.items, 1)

	err = svc.Delete(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceGetSlots(t *testing.T) {
	svc, fx := newGeneratorFixture(t, generatorFixtureConfig{})
	fx.runs.items = []models.TimetableRun{{ID: "run-1", TermID: "term-1", Status: models.TimetableRunStatusDraft}}
	fx.slots.items = map[string][]models.TimetableSlot{
		"run-1": {{RunID: "run-1", Class: "7A", Day: "Mon", SlotID: "P1", Subject: "Mathematics"}},
	}

	slots, err := svc.GetSlots(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	_, err = svc.GetSlots(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceExportCSV(t *testing.T) {
	svc, fx := newGeneratorFixture(t, generatorFixtureConfig{})
	fx.runs.items = []models.TimetableRun{{
		ID:     "run-1",
		TermID: "term-1",
		Status: models.TimetableRunStatusDraft,
		Meta:   types.JSONText(`{"days":["Mon"],"slotTemplate":[{"id":"P1","start":"07:00","end":"07:45","type":"teaching"}]}`),
	}}
	fx.slots.items = map[string][]models.TimetableSlot{
		"run-1": {{RunID: "run-1", Class: "7A", Day: "Mon", SlotID: "P1", Subject: "Mathematics", Teacher: "Sari"}},
	}

	var buf strings.Builder
	require.NoError(t, svc.ExportCSV(context.Background(), "run-1", &buf))
	out := buf.String()
	assert.Contains(t, out, "Class,Day,PeriodStart,PeriodEnd,Subject,Teacher")
	assert.Contains(t, out, "7A,Mon,07:00,07:45,Mathematics,Sari")
}

// --- Fixtures ---

type generatorFixtureConfig struct {
	engine engineRunner
	tx     txProvider
}

type generatorFixture struct {
	runs  *runRepoStub
	slots *slotRepoStub
}

func newGeneratorFixture(t *testing.T, cfg generatorFixtureConfig) (*GeneratorService, *generatorFixture) {
	t.Helper()
	fx := &generatorFixture{
		runs:  &runRepoStub{},
		slots: &slotRepoStub{},
	}
	engine := cfg.engine
	if engine == nil {
		engine = engineStub{result: cleanResult()}
	}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}
	svc := NewGeneratorService(
		engine,
		fx.runs,
		fx.slots,
		tx,
		nil,
		nil,
		nil,
		nil,
		GeneratorConfig{ProposalTTL: time.Hour},
	)
	return svc, fx
}

func generateRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		TermID:  "term-1",
		Classes: []string{"7A"},
		Days:    []string{"Mon"},
		Slots: []dto.SlotPayload{
			{ID: "P1", Start: "07:00", End: "07:45", Type: "teaching"},
		},
		Teachers: []dto.TeacherPayload{
			{Name: "Sari", Subjects: []string{"Mathematics"}, ClassPrefixes: []string{"7"}},
		},
		Rules: scheduler.Rules{
			Quotas: map[string]int{"Mathematics": 1},
		},
	}
}

func cleanResult() *scheduler.Result {
	tt := models.NewTimetable()
	tt.Place(models.Assignment{Class: "7A", Day: "Mon", SlotID: "P1", Subject: "Mathematics", Teacher: "Sari"})
	return &scheduler.Result{
		Timetable: tt,
		Metrics:   scheduler.Metrics{},
		Cost:      0,
		Seed:      12345,
	}
}

func resultWithMetrics(m scheduler.Metrics) *scheduler.Result {
	res := cleanResult()
	res.Metrics = m
	res.Cost = scheduler.DefaultWeights().TotalCost(m)
	return res
}

type engineStub struct {
	result *scheduler.Result
	err    error
}

func (s engineStub) Run(_ context.Context, _ *scheduler.Instance) (*scheduler.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type runRepoStub struct {
	items []models.TimetableRun
}

func (s *runRepoStub) CreateVersioned(_ context.Context, _ sqlx.ExtContext, run *models.TimetableRun) error {
	run.ID = fmt.Sprintf("run-%d", len(s.items)+1)
	run.Version = len(s.items) + 1
	s.items = append(s.items, *run)
	return nil
}

func (s *runRepoStub) ListByTerm(_ context.Context, termID string) ([]models.TimetableRun, error) {
	var out []models.TimetableRun
	for _, item := range s.items {
		if item.TermID == termID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *runRepoStub) FindByID(_ context.Context, id string) (*models.TimetableRun, error) {
	for _, item := range s.items {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *runRepoStub) Delete(_ context.Context, id string) error {
	for idx, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *runRepoStub) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.TimetableRunStatus) error {
	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items[idx].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

type slotRepoStub struct {
	items map[string][]models.TimetableSlot
}

func (s *slotRepoStub) UpsertBatch(_ context.Context, _ sqlx.ExtContext, slots []models.TimetableSlot) error {
	if s.items == nil {
		s.items = make(map[string][]models.TimetableSlot)
	}
	for _, slot := range slots {
		s.items[slot.RunID] = append(s.items[slot.RunID], slot)
	}
	return nil
}

func (s *slotRepoStub) ListByRun(_ context.Context, runID string) ([]models.TimetableSlot, error) {
	return s.items[runID], nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(_ context.Context, _ *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func (m txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}
