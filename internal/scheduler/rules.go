package scheduler

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// Tier groups classes by name prefix into a band that shares quota minima
// and seeding stagger policy (for example lower/upper/senior).
type Tier struct {
	Name     string   `json:"name"`
	Prefixes []string `json:"prefixes"`
}

// WindowRule restricts a subject to a set of week days for classes whose
// name matches one of the prefixes. An empty prefix list binds every class.
type WindowRule struct {
	Subject  string   `json:"subject"`
	Prefixes []string `json:"prefixes,omitempty"`
	Days     []string `json:"days"`
}

// PreferredRule designates a primary teacher for a subject within a class
// band, with a secondary used when the primary is busy.
type PreferredRule struct {
	Subject   string   `json:"subject"`
	Prefixes  []string `json:"prefixes,omitempty"`
	Primary   string   `json:"primary"`
	Secondary string   `json:"secondary,omitempty"`
}

// DayPreferenceRule gives a soft scoring bonus for placing a subject on
// the listed days for matching classes.
type DayPreferenceRule struct {
	Subject  string   `json:"subject"`
	Prefixes []string `json:"prefixes,omitempty"`
	Days     []string `json:"days"`
}

// FixedSlotRule reserves one (day, slot) cell for a fixed subject across
// every class, e.g. a club period on the last slot of one day.
type FixedSlotRule struct {
	SlotID  string `json:"slotId"`
	Day     string `json:"day"`
	Subject string `json:"subject"`
}

// StaggerRule seeds a once-weekly subject on a fixed day with the period
// chosen per tier, so tiers sharing resources never collide.
type StaggerRule struct {
	Subject    string            `json:"subject"`
	Day        string            `json:"day"`
	SlotByTier map[string]string `json:"slotByTier"`
}

// WindowSeedRule pins a windowed subject on each of its allowed days, with
// the period staggered per class prefix.
type WindowSeedRule struct {
	Subject      string            `json:"subject"`
	SlotByPrefix map[string]string `json:"slotByPrefix"`
}

// DoubleBlockRule seeds two back-to-back periods of a subject for classes
// matching the prefix, on each listed day.
type DoubleBlockRule struct {
	Subject  string    `json:"subject"`
	Prefix   string    `json:"prefix"`
	Days     []string  `json:"days"`
	SlotPair [2]string `json:"slotPair"`
}

// RotationRule seeds a once-weekly subject for a band of classes on one
// day, cycling through a small slot rotation so that classes sharing the
// rotation keep at least one period of separation.
type RotationRule struct {
	Subject  string   `json:"subject"`
	Day      string   `json:"day"`
	Slots    []string `json:"slots"`
	Prefixes []string `json:"prefixes,omitempty"`
}

// SeedRules is the pinned skeleton policy, applied in declaration order
// after break/lunch periods.
type SeedRules struct {
	FixedSlots   []FixedSlotRule   `json:"fixedSlots,omitempty"`
	Staggered    []StaggerRule     `json:"staggered,omitempty"`
	Windowed     []WindowSeedRule  `json:"windowed,omitempty"`
	DoubleBlocks []DoubleBlockRule `json:"doubleBlocks,omitempty"`
	Rotations    []RotationRule    `json:"rotations,omitempty"`
}

// Rules bundles every rule table the engine consumes. Resolved once per
// request and treated as immutable for the whole run.
type Rules struct {
	Subjects        []string                  `json:"subjects"`
	Quotas          map[string]int            `json:"quotas"`
	CoreFloors      map[string]int            `json:"coreFloors,omitempty"`
	TierMinima      map[string]map[string]int `json:"tierMinima,omitempty"`
	TierFloors      map[string]map[string]int `json:"tierFloors,omitempty"`
	TierExclusions  map[string][]string       `json:"tierExclusions,omitempty"`
	PrefixZero      map[string][]string       `json:"prefixZero,omitempty"`
	ShaveOrder      []string                  `json:"shaveOrder,omitempty"`
	NonCore         []string                  `json:"nonCore,omitempty"`
	WeeklyCap       int                       `json:"weeklyCap,omitempty"`
	Windows         []WindowRule              `json:"windows,omitempty"`
	DayPreferences  []DayPreferenceRule       `json:"dayPreferences,omitempty"`
	Preferred       []PreferredRule           `json:"preferred,omitempty"`
	Priorities      map[string]int            `json:"priorities,omitempty"`
	FallbackSubject string                    `json:"fallbackSubject,omitempty"`
	Tiers           []Tier                    `json:"tiers,omitempty"`
	Seeds           SeedRules                 `json:"seeds,omitempty"`

	// Homeroom fallback: these subjects may be covered by the class teacher
	// for classes matching the listed prefixes.
	GeneralSubjects  []string `json:"generalSubjects,omitempty"`
	HomeroomPrefixes []string `json:"homeroomPrefixes,omitempty"`
}

// Instance is the full input of one engine run.
type Instance struct {
	Classes       []string
	Days          []string
	Slots         []models.TimeSlot
	Teachers      []models.TeacherRecord
	ClassTeachers map[string]string
	Rules         Rules
	Weights       Weights
	Search        SearchParams
}

// SearchParams bounds the repair search. Zero values are replaced by
// Normalize with the defaults the engine was tuned with.
type SearchParams struct {
	Restarts        int
	MaxRepairPasses int
	MaxSwaps        int
	TabuSize        int
	BaseSeed        int64
	ChainDepth      int
	ChainNodes      int
	ChainAttempts   int
	KempeDepth      int
	KempeNodes      int
	Neighborhoods   []string

	AdjacencyBoostAt  int
	SameSlotBoostAt   int
	AdaptiveBoostStep float64
}

// Neighborhood names selectable through SearchParams.
const (
	NeighborhoodBlankChain  = "blank_chain"
	NeighborhoodKempeSwap   = "kempe_period_swap"
	NeighborhoodClassDay    = "class_day"
	NeighborhoodClassPeriod = "class_period"
	NeighborhoodStuckClass  = "stuck_class"
)

// DefaultNeighborhoods is the full move set.
var DefaultNeighborhoods = []string{
	NeighborhoodBlankChain,
	NeighborhoodKempeSwap,
	NeighborhoodClassDay,
	NeighborhoodClassPeriod,
	NeighborhoodStuckClass,
}

// Normalize fills unset search bounds with defaults.
func (p SearchParams) Normalize() SearchParams {
	if p.Restarts <= 0 {
		p.Restarts = 8
	}
	if p.MaxRepairPasses <= 0 {
		p.MaxRepairPasses = 40
	}
	if p.MaxSwaps <= 0 {
		p.MaxSwaps = 2000
	}
	if p.TabuSize <= 0 {
		p.TabuSize = 400
	}
	if p.BaseSeed == 0 {
		p.BaseSeed = 12345
	}
	if p.ChainDepth <= 0 {
		p.ChainDepth = 4
	}
	if p.ChainNodes <= 0 {
		p.ChainNodes = 200
	}
	if p.ChainAttempts <= 0 {
		p.ChainAttempts = 3
	}
	if p.KempeDepth <= 0 {
		p.KempeDepth = 6
	}
	if p.KempeNodes <= 0 {
		p.KempeNodes = 300
	}
	if len(p.Neighborhoods) == 0 {
		p.Neighborhoods = DefaultNeighborhoods
	}
	if p.AdjacencyBoostAt <= 0 {
		p.AdjacencyBoostAt = 3
	}
	if p.SameSlotBoostAt <= 0 {
		p.SameSlotBoostAt = 8
	}
	if p.AdaptiveBoostStep <= 1 {
		p.AdaptiveBoostStep = 1.5
	}
	return p
}

// Validate rejects structurally broken instances before scheduling starts.
func (in *Instance) Validate() error {
	if len(in.Classes) == 0 {
		return fmt.Errorf("instance: no classes")
	}
	if len(in.Days) == 0 {
		return fmt.Errorf("instance: no days")
	}
	if len(models.TeachingSlots(in.Slots)) == 0 {
		return fmt.Errorf("instance: no teaching slots")
	}
	if len(in.Rules.Quotas) == 0 {
		return fmt.Errorf("instance: no weekly quotas")
	}
	slotIDs := make(map[string]struct{}, len(in.Slots))
	for _, s := range in.Slots {
		slotIDs[s.ID] = struct{}{}
	}
	for _, f := range in.Rules.Seeds.FixedSlots {
		if _, ok := slotIDs[f.SlotID]; !ok {
			return fmt.Errorf("instance: fixed slot rule references unknown slot %q", f.SlotID)
		}
	}
	for _, r := range in.Rules.Seeds.Rotations {
		for _, sid := range r.Slots {
			if _, ok := slotIDs[sid]; !ok {
				return fmt.Errorf("instance: rotation rule references unknown slot %q", sid)
			}
		}
	}
	return nil
}

// TierOf resolves a class to its tier name via prefix match; empty when no
// tier claims the class.
func (r *Rules) TierOf(class string) string {
	for _, t := range r.Tiers {
		for _, p := range t.Prefixes {
			if strings.HasPrefix(class, p) {
				return t.Name
			}
		}
	}
	return ""
}

// WindowFor returns the allowed days for a subject and class, when a
// window binds them.
func (r *Rules) WindowFor(subject, class string) ([]string, bool) {
	for _, w := range r.Windows {
		if w.Subject != subject {
			continue
		}
		if matchesAnyPrefix(class, w.Prefixes) {
			return w.Days, true
		}
	}
	return nil, false
}

// WindowAllows reports whether placing the subject for the class on the
// given day respects every binding window.
func (r *Rules) WindowAllows(subject, class, day string) bool {
	days, ok := r.WindowFor(subject, class)
	if !ok {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// DayPreferred reports whether the day carries a soft preference bonus for
// the subject and class.
func (r *Rules) DayPreferred(subject, class, day string) bool {
	for _, p := range r.DayPreferences {
		if p.Subject != subject || !matchesAnyPrefix(class, p.Prefixes) {
			continue
		}
		for _, d := range p.Days {
			if d == day {
				return true
			}
		}
	}
	return false
}

// SeededSubjects are subjects placed exclusively by the seeder: fixed
// slots plus staggered and rotation once-weekly policies. The filler and
// repair engine never place them, and they may go without a teacher.
func (r *Rules) SeededSubjects() map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range r.Seeds.FixedSlots {
		out[f.Subject] = struct{}{}
	}
	for _, s := range r.Seeds.Staggered {
		out[s.Subject] = struct{}{}
	}
	for _, rot := range r.Seeds.Rotations {
		out[rot.Subject] = struct{}{}
	}
	return out
}

// ReservedSubjects are the seeded once-weekly subjects whose quota
// consumes fillable capacity (fixed-slot subjects occupy their own
// reserved cells and are excluded).
func (r *Rules) ReservedSubjects() map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range r.Seeds.Staggered {
		out[s.Subject] = struct{}{}
	}
	for _, rot := range r.Seeds.Rotations {
		out[rot.Subject] = struct{}{}
	}
	return out
}

// DoubleBlockFor returns the double-block rule binding the class, if any.
func (r *Rules) DoubleBlockFor(class string) (DoubleBlockRule, bool) {
	for _, db := range r.Seeds.DoubleBlocks {
		if strings.HasPrefix(class, db.Prefix) {
			return db, true
		}
	}
	return DoubleBlockRule{}, false
}

// Priority returns the fixed fill priority for a subject.
func (r *Rules) Priority(subject string) int {
	return r.Priorities[subject]
}

// WeeklyCapOrDefault returns the per-subject weekly ceiling.
func (r *Rules) WeeklyCapOrDefault() int {
	if r.WeeklyCap > 0 {
		return r.WeeklyCap
	}
	return 4
}

func matchesAnyPrefix(class string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}
