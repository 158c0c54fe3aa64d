// Package sheets talks to the Google Sheets ledger the clinic staff edit by
// hand. Rows are addressed by 1-based position; appends are server-side so no
// client-side row-number management is needed.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/clinova/dentalsync/pkg/logging"
)

const rowWidth = 15

// valuesAPI abstracts the Sheets values calls for testing.
type valuesAPI interface {
	Get(ctx context.Context, readRange string) (*sheets.ValueRange, error)
	Append(ctx context.Context, writeRange string, vr *sheets.ValueRange) error
	Update(ctx context.Context, writeRange string, vr *sheets.ValueRange) error
}

// Config controls how the adapter behaves.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	TabName         string
	Timeout         time.Duration
	MaxRetries      int
	Backoff         time.Duration
}

// Adapter performs append-or-overwrite writes against the ledger with bounded
// retries on transient transport failures.
type Adapter struct {
	api        valuesAPI
	tab        string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// New creates an adapter backed by the real Sheets API.
func New(ctx context.Context, cfg Config, logger *logging.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, errors.New("sheets: credentials are required")
	}
	svc, err := sheets.NewService(ctx, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return newAdapter(&sheetsValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg, logger), nil
}

func newAdapter(api valuesAPI, cfg Config, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	tab := strings.TrimSpace(cfg.TabName)
	if tab == "" {
		tab = "Citas"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Adapter{
		api:        api,
		tab:        tab,
		timeout:    timeout,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		now:        time.Now,
	}
}

// ReadAll returns every ledger row as parallel string slices, header included
// at index 0.
func (a *Adapter) ReadAll(ctx context.Context) ([][]string, error) {
	readRange := fmt.Sprintf("%s!A:O", a.tab)
	var vr *sheets.ValueRange
	err := a.withRetries(ctx, "read", func(callCtx context.Context) error {
		var err error
		vr, err = a.api.Get(callCtx, readRange)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sheets: read all: %w", err)
	}

	rows := make([][]string, 0, len(vr.Values))
	for _, raw := range vr.Values {
		cells := make([]string, len(raw))
		for i, v := range raw {
			cells[i] = fmt.Sprintf("%v", v)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// AppendRow appends a 15-cell row after the last row of the ledger. The sync
// timestamp is stamped into the last cell before writing so the ledger carries
// a human-auditable trail independent of the application database.
func (a *Adapter) AppendRow(ctx context.Context, values []string) error {
	stamped, err := a.stamp(values)
	if err != nil {
		return err
	}
	writeRange := fmt.Sprintf("%s!A:O", a.tab)
	err = a.withRetries(ctx, "append", func(callCtx context.Context) error {
		return a.api.Append(callCtx, writeRange, toValueRange(stamped))
	})
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}
	return nil
}

// UpdateRow overwrites the fixed A{n}:O{n} range of an existing row.
func (a *Adapter) UpdateRow(ctx context.Context, rowNumber int, values []string) error {
	if rowNumber < 2 {
		return fmt.Errorf("sheets: update row: row %d is the header or out of range", rowNumber)
	}
	stamped, err := a.stamp(values)
	if err != nil {
		return err
	}
	writeRange := fmt.Sprintf("%s!A%d:O%d", a.tab, rowNumber, rowNumber)
	err = a.withRetries(ctx, "update", func(callCtx context.Context) error {
		return a.api.Update(callCtx, writeRange, toValueRange(stamped))
	})
	if err != nil {
		return fmt.Errorf("sheets: update row %d: %w", rowNumber, err)
	}
	return nil
}

func (a *Adapter) stamp(values []string) ([]string, error) {
	if len(values) != rowWidth {
		return nil, fmt.Errorf("sheets: expected %d cells, got %d", rowWidth, len(values))
	}
	stamped := make([]string, rowWidth)
	copy(stamped, values)
	stamped[rowWidth-1] = a.now().Format(time.RFC3339)
	return stamped, nil
}

func (a *Adapter) withRetries(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return err
		}
		a.logger.Warn("sheets: transient failure, retrying",
			"op", op, "attempt", attempt, "max", a.maxRetries, "error", err)
		if attempt < a.maxRetries {
			select {
			case <-time.After(a.backoff * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// isTransient reports whether the error is worth retrying: network failures,
// timeouts, rate limiting and server-side 5xx responses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}

func toValueRange(cells []string) *sheets.ValueRange {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return &sheets.ValueRange{Values: [][]interface{}{row}}
}

// sheetsValues is the production valuesAPI backed by *sheets.Service.
type sheetsValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (s *sheetsValues) Get(ctx context.Context, readRange string) (*sheets.ValueRange, error) {
	return s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
}

func (s *sheetsValues) Append(ctx context.Context, writeRange string, vr *sheets.ValueRange) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *sheetsValues) Update(ctx context.Context, writeRange string, vr *sheets.ValueRange) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}
