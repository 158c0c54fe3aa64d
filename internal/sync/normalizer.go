package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/clinova/dentalsync/internal/legacy"
	"github.com/clinova/dentalsync/pkg/logging"
)

// Normalizer converts rows from the legacy source and the spreadsheet ledger
// into SourceRecords. Malformed dates and times fall back to the current wall
// clock instead of aborting the batch; the fallback is logged as a warning.
type Normalizer struct {
	loc    *time.Location
	logger *logging.Logger
	now    func() time.Time
}

// NewNormalizer creates a normalizer for the given clinic timezone.
func NewNormalizer(loc *time.Location, logger *logging.Logger) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{loc: loc, logger: logger, now: time.Now}
}

// FromLegacy normalizes a legacy database row.
func (n *Normalizer) FromLegacy(row legacy.Row) SourceRecord {
	return SourceRecord{
		LegacyID:      strings.TrimSpace(row.ID),
		PatientNumber: strings.TrimSpace(row.PatientNumber),
		FirstName:     strings.TrimSpace(row.FirstName),
		LastName:      strings.TrimSpace(row.LastName),
		Phone:         normalizePhone(row.MobilePhone),
		Date:          n.normalizeDate(row.Date),
		Time:          n.normalizeTime(row.Time),
		DurationMin:   row.DurationMin,
		Status:        legacy.StatusName(row.StatusCode),
		Treatment:     legacy.TreatmentName(row.TreatmentCode),
		Doctor:        legacy.DoctorName(row.DoctorCode),
		Notes:         strings.TrimSpace(row.Notes),
		CreatedAt:     row.CreatedAt.In(n.loc).Format(time.RFC3339),
		ModifiedAt:    row.ModifiedAt.In(n.loc).Format(time.RFC3339),
	}
}

// FromSheetRow normalizes a positional spreadsheet row. Short rows are padded
// so every field key is present downstream.
func (n *Normalizer) FromSheetRow(cells []string) SourceRecord {
	padded := make([]string, RowWidth)
	for i := range padded {
		if i < len(cells) {
			padded[i] = strings.TrimSpace(cells[i])
		}
	}

	duration := 0
	if v, err := strconv.Atoi(padded[ColDuration]); err == nil {
		duration = v
	}

	first, last := splitName(padded[ColPatientName])

	return SourceRecord{
		PatientNumber: padded[ColPatientNumber],
		FirstName:     first,
		LastName:      last,
		Phone:         normalizePhone(padded[ColPhone]),
		Date:          n.normalizeDate(padded[ColDate]),
		Time:          n.normalizeTime(padded[ColTime]),
		DurationMin:   duration,
		Treatment:     padded[ColTreatment],
		Doctor:        padded[ColDoctor],
		Status:        padded[ColStatus],
		Notes:         padded[ColNotes],
		CreatedAt:     padded[ColCreatedAt],
		ModifiedAt:    padded[ColModifiedAt],
	}
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", time.RFC3339}

func (n *Normalizer) normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, n.loc); err == nil {
			return t.Format("2006-01-02")
		}
	}
	fallback := n.now().In(n.loc).Format("2006-01-02")
	n.logger.Warn("sync: malformed date, falling back to today", "raw", raw, "fallback", fallback)
	return fallback
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM"}

func (n *Normalizer) normalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("15:04")
		}
	}
	fallback := n.now().In(n.loc).Format("15:04")
	n.logger.Warn("sync: malformed time, falling back to now", "raw", raw, "fallback", fallback)
	return fallback
}

// normalizePhone strips everything but digits and a leading plus sign.
func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
