package models

// SlotType classifies a period within the school day.
type SlotType string

const (
	SlotTeaching SlotType = "teaching"
	SlotBreak    SlotType = "break"
	SlotLunch    SlotType = "lunch"
)

// TimeSlot is one period of the daily template. Loaded once, never mutated.
type TimeSlot struct {
	ID           string   `json:"id"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Type         SlotType `json:"type"`
	Label        string   `json:"label,omitempty"`
	FixedSubject string   `json:"fixedSubject,omitempty"`
}

// Teaching reports whether the slot can hold a regular lesson.
func (s TimeSlot) Teaching() bool {
	return s.Type == SlotTeaching
}

// TeachingSlots filters the daily template down to teachable periods,
// preserving order.
func TeachingSlots(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Teaching() {
			out = append(out, s)
		}
	}
	return out
}

// SlotOrder maps slot IDs to their 1-based position in the daily template.
// Used for adjacency and gap arithmetic.
func SlotOrder(slots []TimeSlot) map[string]int {
	order := make(map[string]int, len(slots))
	for i, s := range slots {
		order[s.ID] = i + 1
	}
	return order
}
