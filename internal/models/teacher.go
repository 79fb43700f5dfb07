package models

// TeacherRecord describes a staff member and what they may teach.
// ClassPrefixes scope eligibility: a record with prefix "B6" covers
// classes "B6", "B6A", "B6B" and so on.
type TeacherRecord struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Subjects      []string `json:"subjects"`
	ClassPrefixes []string `json:"classPrefixes"`
	Role          string   `json:"role,omitempty"`
}
