package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/validate"
)

// SlotPayload describes one daily period in a generation request.
type SlotPayload struct {
	ID           string `json:"id" validate:"required"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Type         string `json:"type" validate:"required,oneof=teaching break lunch"`
	Label        string `json:"label,omitempty"`
	FixedSubject string `json:"fixedSubject,omitempty"`
}

// TeacherPayload describes one teacher record in a generation request.
type TeacherPayload struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name" validate:"required"`
	Subjects      []string `json:"subjects" validate:"required,min=1"`
	ClassPrefixes []string `json:"classPrefixes,omitempty"`
	Role          string   `json:"role,omitempty"`
}

// WeightsPayload overrides the configured cost model per request.
type WeightsPayload struct {
	Blank           int `json:"blank"`
	TeacherConflict int `json:"teacherConflict"`
	ClassConflict   int `json:"classConflict"`
	WindowViolation int `json:"windowViolation"`
	AdjacentRepeat  int `json:"adjacentRepeat"`
	SameSlotRepeat  int `json:"sameSlotRepeat"`
	FallbackSubject int `json:"fallbackSubject"`
	TeacherIdleGap  int `json:"teacherIdleGap"`
}

// SearchPayload overrides the configured search budgets per request.
type SearchPayload struct {
	Restarts        int      `json:"restarts,omitempty"`
	MaxRepairPasses int      `json:"maxRepairPasses,omitempty"`
	MaxSwaps        int      `json:"maxSwaps,omitempty"`
	TabuSize        int      `json:"tabuSize,omitempty"`
	BaseSeed        int64    `json:"baseSeed,omitempty"`
	Neighborhoods   []string `json:"neighborhoods,omitempty"`
}

// GenerateTimetableRequest carries the full scheduling instance: week
// structure, teacher table, and the rule tables the engine consumes.
type GenerateTimetableRequest struct {
	TermID        string            `json:"termId" validate:"required"`
	Classes       []string          `json:"classes" validate:"required,min=1"`
	Days          []string          `json:"days" validate:"required,min=1"`
	Slots         []SlotPayload     `json:"slots" validate:"required,min=1,dive"`
	Teachers      []TeacherPayload  `json:"teachers" validate:"dive"`
	ClassTeachers map[string]string `json:"classTeachers,omitempty"`
	Rules         scheduler.Rules   `json:"rules"`
	Weights       *WeightsPayload   `json:"weights,omitempty"`
	Search        *SearchPayload    `json:"search,omitempty"`
}

// SlotAssignment is one generated grid cell.
type SlotAssignment struct {
	Class   string `json:"class"`
	Day     string `json:"day"`
	SlotID  string `json:"slotId"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher,omitempty"`
	Pinned  bool   `json:"pinned,omitempty"`
}

// GenerateTimetableResponse returns the best proposal across restarts.
type GenerateTimetableResponse struct {
	ProposalID        string            `json:"proposalId"`
	TermID            string            `json:"termId"`
	Slots             []SlotAssignment  `json:"slots"`
	Metrics           scheduler.Metrics `json:"metrics"`
	Cost              int               `json:"cost"`
	Converged         bool              `json:"converged"`
	Restart           int               `json:"restart"`
	Seed              int64             `json:"seed"`
	RelaxedClasses    []string          `json:"relaxedClasses,omitempty"`
	InfeasibleClasses []string          `json:"infeasibleClasses,omitempty"`
	Audit             []string          `json:"audit,omitempty"`
	Validation        *validate.Report  `json:"validation,omitempty"`
	RequestedAt       time.Time         `json:"requestedAt"`
}

// SaveTimetableRequest persists a previously generated proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
}

// TimetableQuery filters stored runs.
type TimetableQuery struct {
	TermID string `json:"termId"`
}
