package sync

import (
	"fmt"
	"strings"
	"time"
)

// Spreadsheet column layout. The ledger is a fixed 15-column row (A–O);
// column A carries the patient number used for row lookup and column O the
// last sync timestamp stamped on every write.
const (
	ColPatientNumber = 0
	ColPatientName   = 1
	ColPhone         = 2
	ColDate          = 3
	ColTime          = 4
	ColDuration      = 5
	ColTreatment     = 6
	ColDoctor        = 7
	ColStatus        = 8
	ColNotes         = 9
	ColCreatedAt     = 10
	ColModifiedAt    = 11
	ColReminderSent  = 12
	ColConsentSent   = 13
	ColSyncedAt      = 14

	RowWidth = 15
)

// SourceRecord is the normalized shape of an appointment regardless of which
// store it came from. Every field is always present; missing values are empty
// strings, never omitted keys.
type SourceRecord struct {
	LegacyID      string
	PatientNumber string
	FirstName     string
	LastName      string
	Phone         string
	Date          string // YYYY-MM-DD
	Time          string // HH:MM
	DurationMin   int
	Status        string
	Treatment     string
	Doctor        string
	Notes         string
	CreatedAt     string
	ModifiedAt    string
}

// FullName joins first and last name, tolerating either being empty.
func (r SourceRecord) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// ScheduledAt combines the normalized date and time into a clinic-local timestamp.
func (r SourceRecord) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02 15:04", r.Date+" "+r.Time, loc)
}

// SheetRow renders the record as the 15 ledger cells A–O. The sync timestamp
// cell is left empty; the sheet adapter stamps it on write.
func (r SourceRecord) SheetRow() []string {
	row := make([]string, RowWidth)
	row[ColPatientNumber] = r.PatientNumber
	row[ColPatientName] = r.FullName()
	row[ColPhone] = r.Phone
	row[ColDate] = r.Date
	row[ColTime] = r.Time
	row[ColDuration] = fmt.Sprintf("%d", r.DurationMin)
	row[ColTreatment] = r.Treatment
	row[ColDoctor] = r.Doctor
	row[ColStatus] = r.Status
	row[ColNotes] = r.Notes
	row[ColCreatedAt] = r.CreatedAt
	row[ColModifiedAt] = r.ModifiedAt
	return row
}
