package scheduler

import (
	"strings"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// Directory resolves (subject, class) to an ordered list of eligible
// teachers, honouring preferred-teacher overrides and the homeroom
// fallback for the lower bands.
type Directory struct {
	records       []models.TeacherRecord
	classTeachers map[string]string
	general       map[string]struct{}
	homerooms     []string
	preferred     []PreferredRule
}

// NewDirectory builds the lookup from the instance's teacher table and rules.
func NewDirectory(in *Instance) *Directory {
	general := make(map[string]struct{}, len(in.Rules.GeneralSubjects))
	for _, s := range in.Rules.GeneralSubjects {
		general[s] = struct{}{}
	}
	return &Directory{
		records:       in.Teachers,
		classTeachers: in.ClassTeachers,
		general:       general,
		homerooms:     in.Rules.HomeroomPrefixes,
		preferred:     in.Rules.Preferred,
	}
}

// CandidatesFor returns eligible teachers in preference order: the
// designated primary first when an override matches, then eligibility
// matches in record order, then the homeroom fallback for general
// subjects in homeroom bands.
func (d *Directory) CandidatesFor(subject, class string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	if rule, ok := d.preferredRule(subject, class); ok {
		if d.hasRecord(rule.Primary, subject) {
			add(rule.Primary)
		}
	}
	for _, r := range d.records {
		if !containsString(r.Subjects, subject) {
			continue
		}
		if matchesClass(class, r.ClassPrefixes) {
			add(r.Name)
		}
	}
	if d.isHomeroomClass(class) {
		if _, ok := d.general[subject]; ok {
			add(d.classTeachers[class])
		}
	}
	return out
}

// PreferredFor picks the teacher for a specially policed subject: the
// designated primary unless busy in any of the requested slots, in which
// case the secondary steps in. Without an override the first eligible
// candidate is used.
func (d *Directory) PreferredFor(subject, class, day string, slotIDs []string, ledger *Ledger) string {
	if rule, ok := d.preferredRule(subject, class); ok {
		busy := false
		for _, sid := range slotIDs {
			if ledger.TeacherBusy(rule.Primary, day, sid) {
				busy = true
				break
			}
		}
		if !busy {
			return rule.Primary
		}
		if rule.Secondary != "" {
			return rule.Secondary
		}
	}
	cands := d.CandidatesFor(subject, class)
	if len(cands) == 0 {
		return ""
	}
	return cands[0]
}

func (d *Directory) preferredRule(subject, class string) (PreferredRule, bool) {
	for _, rule := range d.preferred {
		if rule.Subject == subject && matchesAnyPrefix(class, rule.Prefixes) {
			return rule, true
		}
	}
	return PreferredRule{}, false
}

func (d *Directory) hasRecord(name, subject string) bool {
	for _, r := range d.records {
		if r.Name == name && containsString(r.Subjects, subject) {
			return true
		}
	}
	return false
}

func (d *Directory) isHomeroomClass(class string) bool {
	for _, p := range d.homerooms {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}

func matchesClass(class string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
