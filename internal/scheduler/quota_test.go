package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

func quotaWeek() ([]string, []models.TimeSlot) {
	days := []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	slots := []models.TimeSlot{
		{ID: "P1", Type: models.SlotTeaching},
		{ID: "P2", Type: models.SlotTeaching},
		{ID: "B1", Type: models.SlotBreak},
	}
	return days, slots
}

func TestQuotaEngineCapacityDiscountsFixedCells(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{"Mathematics": 3},
		Seeds: SeedRules{
			FixedSlots: []FixedSlotRule{{SlotID: "P2", Day: "Fri", Subject: "Club"}},
		},
	}
	q := NewQuotaEngine(rules, days, slots)
	assert.Equal(t, 9, q.Capacity(), "5 days x 2 teaching minus 1 fixed")
}

func TestQuotaEngineApplicableTierExclusionsAndPrefixZero(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{"Mathematics": 3, "Drama": 2, "Music": 2},
		Tiers:  []Tier{{Name: "upper", Prefixes: []string{"9"}}},
		TierExclusions: map[string][]string{
			"upper": {"Drama"},
		},
		PrefixZero: map[string][]string{
			"9A": {"Music"},
		},
	}
	q := NewQuotaEngine(rules, days, slots)

	got := q.Applicable("9A")
	assert.NotContains(t, got, "Drama")
	assert.Equal(t, 0, got["Music"])
	assert.Equal(t, 3, got["Mathematics"])

	other := q.Applicable("9B")
	assert.Equal(t, 2, other["Music"], "prefix override scoped to 9A")
}

func TestQuotaEngineNormalizedShavesToCapacity(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 3,
			"English":     3,
			"Art":         3,
			"Music":       2,
		},
		ShaveOrder: []string{"Music", "Art"},
		Tiers:      []Tier{{Name: "upper", Prefixes: []string{"9"}}},
		TierMinima: map[string]map[string]int{
			"upper": {"Art": 2},
		},
		Seeds: SeedRules{
			FixedSlots: []FixedSlotRule{{SlotID: "P2", Day: "Fri", Subject: "Club"}},
		},
	}
	q := NewQuotaEngine(rules, days, slots)

	got := q.Normalized("9A")
	assert.Equal(t, 3, got["Mathematics"])
	assert.Equal(t, 3, got["English"])
	assert.Equal(t, 2, got["Art"], "shaved down to its tier minimum")
	assert.Equal(t, 1, got["Music"], "shaved to the implicit floor of one")

	total := 0
	for _, n := range got {
		total += n
	}
	assert.Equal(t, q.Capacity(), total)
}

func TestQuotaEngineCoreFloorsResistShaving(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 2,
			"Music":       4,
		},
		CoreFloors: map[string]int{"Mathematics": 4},
		ShaveOrder: []string{"Music"},
	}
	q := NewQuotaEngine(rules, days, slots)

	got := q.Normalized("8A")
	assert.Equal(t, 4, got["Mathematics"], "core floor raises the target")
}

func TestQuotaEngineRelaxationShavesNonCore(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 4,
			"Art":         3,
			"Music":       2,
		},
		NonCore: []string{"Art", "Music"},
	}
	q := NewQuotaEngine(rules, days, slots)

	plain := q.Normalized("7A")
	assert.Equal(t, 3, plain["Art"])
	assert.Equal(t, 2, plain["Music"])

	q.SetRelaxation(GlobalRelaxation())
	relaxed := q.Normalized("7A")
	assert.Equal(t, 2, relaxed["Art"])
	assert.Equal(t, 1, relaxed["Music"])
	assert.Equal(t, 4, relaxed["Mathematics"], "core quota untouched")
}

func TestQuotaEngineTargetedRelaxationScope(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas:  map[string]int{"Mathematics": 4, "Art": 3},
		NonCore: []string{"Art"},
	}
	q := NewQuotaEngine(rules, days, slots)
	q.SetRelaxation(TargetedRelaxation("7B"))

	assert.Equal(t, 3, q.Normalized("7A")["Art"])
	assert.Equal(t, 2, q.Normalized("7B")["Art"])
}

func TestQuotaEngineNormalizedSkipsSeededSubjects(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 4,
			"Assembly":    1,
		},
		Seeds: SeedRules{
			Staggered: []StaggerRule{{Subject: "Assembly", Day: "Mon", SlotByTier: map[string]string{"lower": "P1"}}},
		},
	}
	q := NewQuotaEngine(rules, days, slots)

	got := q.Normalized("7A")
	assert.NotContains(t, got, "Assembly", "seeded subjects are not filled")
	assert.Equal(t, 4, got["Mathematics"])
}

func TestQuotaEngineMaximaPinsFloorsAndCapsSlack(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 4,
			"English":     3,
			"Art":         2,
		},
		CoreFloors: map[string]int{"Mathematics": 4},
		Tiers:      []Tier{{Name: "upper", Prefixes: []string{"9"}}},
		TierFloors: map[string]map[string]int{
			"upper": {"English": 3},
		},
		WeeklyCap: 4,
	}
	q := NewQuotaEngine(rules, days, slots)

	got := q.Maxima("9A")
	assert.Equal(t, 4, got["Mathematics"], "core floor stays exact")
	assert.Equal(t, 3, got["English"], "tier floor stays exact")
	assert.Equal(t, 3, got["Art"], "electives get one above target under the cap")
}

func TestQuotaEngineSoftMaximaSlack(t *testing.T) {
	days, slots := quotaWeek()
	rules := &Rules{
		Quotas: map[string]int{
			"Mathematics": 4,
			"Art":         2,
		},
		CoreFloors: map[string]int{"Mathematics": 4},
		WeeklyCap:  4,
	}
	q := NewQuotaEngine(rules, days, slots)

	soft := q.SoftMaxima("7A")
	assert.Equal(t, 5, soft["Mathematics"], "core subjects get one above the cap")
	assert.Equal(t, 3, soft["Art"], "target plus one under the cap")
}
