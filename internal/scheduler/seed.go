package scheduler

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// seeder writes the pinned skeleton: non-teaching periods, fixed-subject
// cells, and the policy-driven once-weekly placements. Seeding never
// overwrites an existing cell; a rejected target is skipped and audited.
type seeder struct {
	tt     *models.Timetable
	ledger *Ledger
	in     *Instance
	dir    *Directory
	audit  *auditTrail
}

func (s *seeder) run() {
	s.audit.section("Seed")
	s.seedNonTeaching()
	s.seedFixedSlots()
	s.seedStaggered()
	s.seedWindowed()
	s.seedDoubleBlocks()
	s.seedRotations()
}

// place commits one pinned cell through the ledger, skipping occupied or
// conflicting targets.
func (s *seeder) place(class, day, slotID, subject, teacher string) bool {
	if s.tt.Occupied(class, day, slotID) {
		s.audit.logf("seed skip %s %s %s: cell occupied", class, day, slotID)
		return false
	}
	if !s.ledger.CanPlace(teacher, class, day, slotID) {
		s.audit.logf("seed skip %s %s %s: %s unavailable", class, day, slotID, teacher)
		return false
	}
	s.tt.Place(models.Assignment{
		Class: class, Day: day, SlotID: slotID,
		Subject: subject, Teacher: teacher, Pinned: true,
	})
	s.ledger.Place(teacher, class, day, slotID)
	if teacher != "" {
		s.audit.logf("seed %s %s %s -> %s (%s)", class, day, slotID, subject, teacher)
	} else {
		s.audit.logf("seed %s %s %s -> %s", class, day, slotID, subject)
	}
	return true
}

func (s *seeder) seedNonTeaching() {
	for _, day := range s.in.Days {
		for _, slot := range s.in.Slots {
			if slot.Teaching() {
				continue
			}
			label := nonTeachingLabel(slot)
			for _, class := range s.in.Classes {
				s.place(class, day, slot.ID, label, "")
			}
		}
	}
}

func (s *seeder) seedFixedSlots() {
	for _, rule := range s.in.Rules.Seeds.FixedSlots {
		for _, class := range s.in.Classes {
			s.place(class, rule.Day, rule.SlotID, rule.Subject, "")
		}
	}
}

func (s *seeder) seedStaggered() {
	for _, rule := range s.in.Rules.Seeds.Staggered {
		for _, class := range s.in.Classes {
			tier := s.in.Rules.TierOf(class)
			slotID, ok := rule.SlotByTier[tier]
			if !ok {
				continue
			}
			s.place(class, rule.Day, slotID, rule.Subject, "")
		}
	}
}

func (s *seeder) seedWindowed() {
	for _, rule := range s.in.Rules.Seeds.Windowed {
		for _, class := range s.in.Classes {
			slotID, ok := staggerSlot(class, rule.SlotByPrefix)
			if !ok {
				continue
			}
			days, ok := s.in.Rules.WindowFor(rule.Subject, class)
			if !ok {
				continue
			}
			teacher := ""
			if cands := s.dir.CandidatesFor(rule.Subject, class); len(cands) > 0 {
				teacher = cands[0]
			}
			for _, day := range days {
				s.place(class, day, slotID, rule.Subject, teacher)
			}
		}
	}
}

func (s *seeder) seedDoubleBlocks() {
	for _, rule := range s.in.Rules.Seeds.DoubleBlocks {
		for _, class := range s.in.Classes {
			if !strings.HasPrefix(class, rule.Prefix) {
				continue
			}
			for _, day := range rule.Days {
				teacher := s.dir.PreferredFor(rule.Subject, class, day, rule.SlotPair[:], s.ledger)
				for _, slotID := range rule.SlotPair {
					s.place(class, day, slotID, rule.Subject, teacher)
				}
			}
		}
	}
}

func (s *seeder) seedRotations() {
	for _, rule := range s.in.Rules.Seeds.Rotations {
		classes := make([]string, 0, len(s.in.Classes))
		for _, class := range s.in.Classes {
			if matchesAnyPrefix(class, rule.Prefixes) {
				classes = append(classes, class)
			}
		}
		sort.Strings(classes)
		var used []string
		for idx, class := range classes {
			slotID := rule.Slots[idx%len(rule.Slots)]
			// Keep at least one period of separation within the rotation.
			if containsString(used, slotID) {
				slotID = rule.Slots[(idx+1)%len(rule.Slots)]
			}
			used = append(used, slotID)
			s.place(class, rule.Day, slotID, rule.Subject, "")
		}
	}
}

// staggerSlot resolves the stagger slot for a class from its prefix map.
// The longest matching prefix wins, ties broken lexicographically, so
// overlapping rules resolve to the same slot on every run.
func staggerSlot(class string, byPrefix map[string]string) (string, bool) {
	best, found := "", false
	for prefix := range byPrefix {
		if !strings.HasPrefix(class, prefix) {
			continue
		}
		if !found || len(prefix) > len(best) || (len(prefix) == len(best) && prefix < best) {
			best, found = prefix, true
		}
	}
	if !found {
		return "", false
	}
	return byPrefix[best], true
}

// nonTeachingLabel names the break/lunch cell a slot produces.
func nonTeachingLabel(s models.TimeSlot) string {
	if s.Label != "" {
		return s.Label
	}
	switch s.Type {
	case models.SlotBreak:
		return "Break"
	case models.SlotLunch:
		return "Lunch"
	default:
		return string(s.Type)
	}
}
