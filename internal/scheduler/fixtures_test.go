package scheduler

import (
	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// twoClassInstance is the smallest fully feasible week: two classes, two
// days, two teaching periods, and one dedicated teacher per subject. The
// only zero-blank layout is the Latin-square complement of the classes.
func twoClassInstance() *Instance {
	return &Instance{
		Classes: []string{"7A", "7B"},
		Days:    []string{"Mon", "Tue"},
		Slots: []models.TimeSlot{
			{ID: "P1", Start: "07:00", End: "07:45", Type: models.SlotTeaching},
			{ID: "P2", Start: "07:45", End: "08:30", Type: models.SlotTeaching},
			{ID: "B1", Start: "08:30", End: "08:50", Type: models.SlotBreak},
		},
		Teachers: []models.TeacherRecord{
			{Name: "Sari", Subjects: []string{"Mathematics"}, ClassPrefixes: []string{"7"}},
			{Name: "Budi", Subjects: []string{"English"}, ClassPrefixes: []string{"7"}},
		},
		Rules: Rules{
			Subjects: []string{"Mathematics", "English"},
			Quotas:   map[string]int{"Mathematics": 2, "English": 2},
		},
	}
}

// threeSlotInstance has room for seeding policies: three teaching periods
// per day across a five-day week.
func threeSlotInstance() *Instance {
	return &Instance{
		Classes: []string{"7A", "7B"},
		Days:    []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		Slots: []models.TimeSlot{
			{ID: "P1", Start: "07:00", End: "07:45", Type: models.SlotTeaching},
			{ID: "P2", Start: "07:45", End: "08:30", Type: models.SlotTeaching},
			{ID: "B1", Start: "08:30", End: "08:50", Type: models.SlotBreak, Label: "Break"},
			{ID: "P3", Start: "08:50", End: "09:35", Type: models.SlotTeaching},
		},
		Teachers: []models.TeacherRecord{
			{Name: "Sari", Subjects: []string{"Mathematics", "Science"}, ClassPrefixes: []string{"7"}},
			{Name: "Budi", Subjects: []string{"English", "PE"}, ClassPrefixes: []string{"7"}},
			{Name: "Rina", Subjects: []string{"Art", "Music"}, ClassPrefixes: []string{"7"}},
		},
		Rules: Rules{
			Subjects: []string{"Mathematics", "English", "Science", "Art"},
			Quotas: map[string]int{
				"Mathematics": 4,
				"English":     4,
				"Science":     3,
				"Art":         3,
			},
			Tiers: []Tier{{Name: "lower", Prefixes: []string{"7"}}},
		},
	}
}

func newTestPipeline(in *Instance) (*models.Timetable, *Ledger, *Directory, *QuotaEngine, *auditTrail) {
	tt := models.NewTimetable()
	ledger := NewLedger()
	dir := NewDirectory(in)
	quota := NewQuotaEngine(&in.Rules, in.Days, in.Slots)
	audit := newAuditTrail(nil)
	return tt, ledger, dir, quota, audit
}
