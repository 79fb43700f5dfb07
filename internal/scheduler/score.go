package scheduler

// Candidate-scoring bonuses and penalties. Values are tuned relative to
// each other, not to the cost model: scoring steers construction, the
// cost model judges the finished grid.
const (
	noveltyBonus      = 5
	spreadBonus       = 1
	dayPrefBonus      = 4
	sameTimePenalty   = 10
	diminishingCeil   = 3
	halfDayBonus      = 1
	minGapBonus       = 2
	minGapPenalty     = 3
	minGapBonusAt     = 2
	minGapPenaltyAt   = 1
)

// candidate is one scorable placement option for an open cell.
type candidate struct {
	class   string
	day     string
	slotID  string
	subject string
	teacher string

	// usedToday: the subject already appears for this class on this day.
	usedToday bool
	// sameTime: another class runs this subject in the same (day, slot).
	sameTime bool
	// weeklyUsed: placements of this subject for this class so far this week.
	weeklyUsed int
	// minGap: smallest period distance to another class running this
	// subject on this day; -1 when no other class does.
	minGap int
	// lastPeriod: the slot is the final teaching period of the day.
	lastPeriod bool
}

// scoreCandidate rates a placement option. Higher is better. The subject's
// fixed priority is added by the caller so both fill passes share it.
func scoreCandidate(r *Rules, c candidate) int {
	s := 0
	if !c.usedToday {
		s += noveltyBonus
	}
	s += spreadBonus
	if r.DayPreferred(c.subject, c.class, c.day) {
		s += dayPrefBonus
	}
	if c.sameTime {
		s -= sameTimePenalty
	}
	if d := diminishingCeil - c.weeklyUsed; d > 0 {
		s += d
	}
	if !c.lastPeriod {
		s += halfDayBonus
	}
	if c.minGap >= 0 {
		if c.minGap >= minGapBonusAt {
			s += minGapBonus
		} else if c.minGap == minGapPenaltyAt {
			s -= minGapPenalty
		}
	}
	return s
}
