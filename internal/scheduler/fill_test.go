package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSeedAndFill(in *Instance) (*filler, *seeder) {
	tt, ledger, dir, quota, audit := newTestPipeline(in)
	sd := &seeder{tt: tt, ledger: ledger, in: in, dir: dir, audit: audit}
	sd.run()
	fl := &filler{tt: tt, ledger: ledger, in: in, dir: dir, quota: quota, audit: audit}
	fl.run()
	return fl, sd
}

func TestFillerMeetsQuotasOnFeasibleWeek(t *testing.T) {
	in := twoClassInstance()
	fl, _ := runSeedAndFill(in)

	for _, class := range in.Classes {
		counts := map[string]int{}
		for _, a := range fl.tt.ForClass(class) {
			counts[a.Subject]++
		}
		assert.Equal(t, 2, counts["Mathematics"], "class %s", class)
		assert.Equal(t, 2, counts["English"], "class %s", class)
	}
	m := ComputeMetrics(fl.tt, in)
	assert.Zero(t, m.Blanks)
	assert.Zero(t, m.Conflicts())
}

func TestFillerDailyUniqueness(t *testing.T) {
	in := twoClassInstance()
	fl, _ := runSeedAndFill(in)

	for _, class := range in.Classes {
		for _, day := range in.Days {
			seen := map[string]int{}
			for _, a := range fl.tt.ForClassDay(class, day) {
				seen[a.Subject]++
			}
			for subj, n := range seen {
				if subj == "Break" {
					continue
				}
				assert.LessOrEqual(t, n, 1, "%s repeated for %s on %s", subj, class, day)
			}
		}
	}
}

func TestFillerRespectsWindows(t *testing.T) {
	in := twoClassInstance()
	in.Rules.Windows = []WindowRule{{Subject: "English", Days: []string{"Tue"}}}
	fl, _ := runSeedAndFill(in)

	for _, a := range fl.tt.All() {
		if a.Subject == "English" {
			assert.Equal(t, "Tue", a.Day)
		}
	}
}

func TestFillerDoubleBlockExemption(t *testing.T) {
	in := threeSlotInstance()
	in.Rules.Quotas = map[string]int{"Science": 6, "Mathematics": 5, "English": 4}
	in.Rules.Seeds.DoubleBlocks = []DoubleBlockRule{
		{Subject: "Science", Prefix: "7", Days: []string{"Mon", "Wed"}, SlotPair: [2]string{"P1", "P2"}},
	}
	fl, _ := runSeedAndFill(in)

	for _, class := range in.Classes {
		for _, day := range in.Days {
			n := 0
			for _, a := range fl.tt.ForClassDay(class, day) {
				if a.Subject == "Science" {
					n++
				}
			}
			limit := 1
			if day == "Mon" || day == "Wed" {
				limit = 2
			}
			assert.LessOrEqual(t, n, limit, "%s on %s", class, day)
		}
	}
}

func TestFillerNeverDoubleBooksTeachers(t *testing.T) {
	in := twoClassInstance()
	fl, _ := runSeedAndFill(in)

	m := ComputeMetrics(fl.tt, in)
	require.Zero(t, m.TeacherConflicts)
	require.Zero(t, m.ClassConflicts)
}

func TestFillerSkipsFixedColumns(t *testing.T) {
	in := threeSlotInstance()
	in.Rules.Seeds.FixedSlots = []FixedSlotRule{{SlotID: "P3", Day: "Fri", Subject: "Club"}}
	fl, _ := runSeedAndFill(in)

	for _, class := range in.Classes {
		a, ok := fl.tt.Get(class, "Fri", "P3")
		require.True(t, ok)
		assert.Equal(t, "Club", a.Subject)
	}
}
