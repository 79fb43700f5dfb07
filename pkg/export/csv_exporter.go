// Package export renders a populated timetable grid as per-class CSV
// blocks suitable for spreadsheets and the external validator.
package export

import (
	"encoding/csv"
	"io"
	"sort"
)

// Slot is the daily period template entry used for row ordering.
type Slot struct {
	ID    string
	Start string
	End   string
}

// Cell is one placed grid cell.
type Cell struct {
	Class   string
	Day     string
	SlotID  string
	Subject string
	Teacher string
}

var header = []string{"Class", "Day", "PeriodStart", "PeriodEnd", "Subject", "Teacher"}

// WriteBlocks writes one CSV block per class: a header row, then one row
// per (day, period) in template order. Unplaced cells render with an
// empty subject. A blank record separates consecutive blocks.
func WriteBlocks(w io.Writer, cells []Cell, classes, days []string, slots []Slot) error {
	byCell := make(map[[3]string]Cell, len(cells))
	for _, c := range cells {
		byCell[[3]string{c.Class, c.Day, c.SlotID}] = c
	}
	ordered := append([]string(nil), classes...)
	sort.Strings(ordered)

	cw := csv.NewWriter(w)
	for i, class := range ordered {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return err
			}
		}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, day := range days {
			for _, slot := range slots {
				row := []string{class, day, slot.Start, slot.End, "", ""}
				if c, ok := byCell[[3]string{class, day, slot.ID}]; ok {
					row[4] = c.Subject
					row[5] = c.Teacher
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
