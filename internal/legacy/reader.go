package legacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinova/dentalsync/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Row is one appointment row as stored by the practice-management system.
// Text columns arrive as raw bytes; Reader decodes them before handing the
// row to callers.
type Row struct {
	ID            string
	ModifiedAt    time.Time
	CreatedAt     time.Time
	PatientNumber string
	LastName      string
	FirstName     string
	MobilePhone   string
	Date          string
	Time          string
	StatusCode    int
	TreatmentCode int
	DoctorCode    int
	Notes         string
	DurationMin   int
}

// Reader pulls recently modified appointments from the legacy database.
type Reader struct {
	db      DB
	timeout time.Duration
	logger  *logging.Logger
}

// NewReader creates a legacy reader.
func NewReader(db DB, logger *logging.Logger) *Reader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reader{db: db, timeout: 10 * time.Second, logger: logger}
}

// WithTimeout bounds each fetch so a hung legacy database cannot starve the
// scheduler's next tick.
func (r *Reader) WithTimeout(d time.Duration) *Reader {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// FetchRecent returns the limit most-recently-modified appointment rows.
// The batch is bounded on purpose: a sync pass never does a full-table scan.
func (r *Reader) FetchRecent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, modified_at, created_at, patient_number, last_name, first_name,
		       mobile_phone, appointment_date, appointment_time,
		       status_code, treatment_code, doctor_code, notes, duration_minutes
		FROM appointments
		ORDER BY modified_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("legacy: fetch recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row                             Row
			patientNum, lastName, firstName []byte
			phone, date, timeOfDay, notes   []byte
		)
		if err := rows.Scan(
			&row.ID, &row.ModifiedAt, &row.CreatedAt, &patientNum, &lastName, &firstName,
			&phone, &date, &timeOfDay,
			&row.StatusCode, &row.TreatmentCode, &row.DoctorCode, &notes, &row.DurationMin,
		); err != nil {
			return nil, fmt.Errorf("legacy: scan row: %w", err)
		}
		row.PatientNumber = decodeText(patientNum)
		row.LastName = decodeText(lastName)
		row.FirstName = decodeText(firstName)
		row.MobilePhone = decodeText(phone)
		row.Date = decodeText(date)
		row.Time = decodeText(timeOfDay)
		row.Notes = decodeText(notes)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("legacy: iterate rows: %w", err)
	}

	r.logger.Debug("legacy: fetched recent appointments", "count", len(out), "limit", limit)
	return out, nil
}

// decodeText converts a raw column to text. Invalid bytes are replaced, never
// rejected; NULL becomes an empty string so every field is always present.
func decodeText(b []byte) string {
	if b == nil {
		return ""
	}
	return strings.ToValidUTF8(string(b), "�")
}
