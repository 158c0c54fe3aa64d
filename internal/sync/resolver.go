package sync

import (
	"strings"
)

// RowMatch is the tagged result of a ledger row lookup. "Not found" is an
// expected, common outcome routed to append logic, not an error.
type RowMatch struct {
	Found bool
	Row   int // 1-based spreadsheet row number
}

// FindAppointmentRow scans the full ledger row set once, skipping the header
// at index 0, and returns the first row whose patient number, date and time
// match exactly. Matching is string equality on normalized YYYY-MM-DD and
// HH:MM forms.
//
// The O(rows) scan is acceptable while the ledger stays in the low thousands
// of rows and lookups happen at sync cadence, not per-request.
func FindAppointmentRow(rows [][]string, patientNumber, date, timeOfDay string) RowMatch {
	patientNumber = strings.TrimSpace(patientNumber)
	for i, cells := range rows {
		if i == 0 {
			continue // header
		}
		if cell(cells, ColPatientNumber) == patientNumber &&
			cell(cells, ColDate) == date &&
			cell(cells, ColTime) == timeOfDay {
			return RowMatch{Found: true, Row: i + 1}
		}
	}
	return RowMatch{}
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// NormalizeName lowercases and collapses whitespace for name matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
