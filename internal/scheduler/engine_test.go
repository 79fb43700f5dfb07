package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func TestEngineRunProducesFullWeek(t *testing.T) {
	in := twoClassInstance()
	in.Search = SearchParams{Restarts: 3, MaxSwaps: 500}

	res, err := New(zap.NewNop()).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Zero(t, res.Metrics.Blanks)
	assert.Zero(t, res.Metrics.Conflicts())
	assert.Zero(t, res.Metrics.WindowViolations)
	assert.Empty(t, res.InfeasibleClasses)
	assert.NotEmpty(t, res.Audit)
	assert.Equal(t, res.Cost == 0, res.Converged())
}

func TestEngineRunRejectsBrokenInstances(t *testing.T) {
	e := New(nil)

	_, err := e.Run(context.Background(), &Instance{Days: []string{"Mon"}})
	assert.Error(t, err, "no classes")

	in := twoClassInstance()
	in.Rules.Quotas = nil
	_, err = e.Run(context.Background(), in)
	assert.Error(t, err, "no quotas")

	in = twoClassInstance()
	in.Rules.Seeds.FixedSlots = []FixedSlotRule{{SlotID: "P9", Day: "Mon", Subject: "Club"}}
	_, err = e.Run(context.Background(), in)
	assert.Error(t, err, "unknown fixed slot")
}

func TestEngineRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Run(ctx, twoClassInstance())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineFlagsInfeasibleClasses(t *testing.T) {
	in := twoClassInstance()
	// Capacity is 4 fillable cells; the quotas demand 6 with no shave room.
	in.Rules.Quotas = map[string]int{"Mathematics": 3, "English": 3}
	in.Search = SearchParams{Restarts: 1, MaxSwaps: 100}

	res, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"7A", "7B"}, res.InfeasibleClasses)
}

func TestEngineKeepsLexicographicBest(t *testing.T) {
	worse := &Result{Key: LexKey{1, 0, 0, 0}}
	better := &Result{Key: LexKey{0, 2, 1, 500}}
	assert.True(t, better.Key.Less(worse.Key))
}

func TestBlankClasses(t *testing.T) {
	in := twoClassInstance()
	tt := models.NewTimetable()
	for _, day := range in.Days {
		for _, slot := range models.TeachingSlots(in.Slots) {
			tt.Place(models.Assignment{Class: "7A", Day: day, SlotID: slot.ID, Subject: "Mathematics"})
		}
	}
	assert.Equal(t, []string{"7B"}, blankClasses(tt, in))
}

func TestShuffledPreservesElements(t *testing.T) {
	in := twoClassInstance()
	in.Search = SearchParams{Restarts: 2, BaseSeed: 99}

	res, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	// Restart shuffles operate on copies; the input order is untouched.
	assert.Equal(t, []string{"7A", "7B"}, in.Classes)
	assert.Equal(t, []string{"Mon", "Tue"}, in.Days)
	require.NotNil(t, res.Timetable)
}

func TestEngineTargetedRelaxationRecoversBlanks(t *testing.T) {
	in := twoClassInstance()
	// A third weekly Mathematics period cannot be placed: the subject is
	// once-per-day and the week has two days. Electives shave instead once
	// the targeted pass relaxes them.
	in.Rules.Quotas = map[string]int{"Mathematics": 2, "English": 1, "Art": 1}
	in.Rules.NonCore = []string{"Art"}
	in.Teachers = append(in.Teachers, models.TeacherRecord{
		Name: "Rina", Subjects: []string{"Art"}, ClassPrefixes: []string{"7"},
	})
	in.Search = SearchParams{Restarts: 2, MaxSwaps: 300}

	res, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Zero(t, res.Metrics.Conflicts())
}
