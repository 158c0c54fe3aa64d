package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

type fakeValues struct {
	getResult  *sheets.ValueRange
	getErrs    []error
	appendErrs []error
	updateErrs []error

	getCalls    int
	appendCalls int
	updateCalls int

	lastRange string
	lastVR    *sheets.ValueRange
}

func (f *fakeValues) Get(ctx context.Context, readRange string) (*sheets.ValueRange, error) {
	f.getCalls++
	f.lastRange = readRange
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.getResult, nil
}

func (f *fakeValues) Append(ctx context.Context, writeRange string, vr *sheets.ValueRange) error {
	f.appendCalls++
	f.lastRange = writeRange
	f.lastVR = vr
	if len(f.appendErrs) > 0 {
		err := f.appendErrs[0]
		f.appendErrs = f.appendErrs[1:]
		return err
	}
	return nil
}

func (f *fakeValues) Update(ctx context.Context, writeRange string, vr *sheets.ValueRange) error {
	f.updateCalls++
	f.lastRange = writeRange
	f.lastVR = vr
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		return err
	}
	return nil
}

func testAdapter(api valuesAPI) *Adapter {
	a := newAdapter(api, Config{
		TabName:    "Citas",
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	}, nil)
	a.now = func() time.Time {
		return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	}
	return a
}

func fullRow() []string {
	row := make([]string, rowWidth)
	row[0] = "1001"
	return row
}

func TestReadAllConvertsValues(t *testing.T) {
	api := &fakeValues{getResult: &sheets.ValueRange{Values: [][]interface{}{
		{"Nº Paciente", "Nombre"},
		{"1001", "Ana García", 30},
	}}}
	a := testAdapter(api)

	rows, err := a.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Citas!A:O", api.lastRange)
	require.Len(t, rows, 2)
	// Numeric cells come back as strings; lookups compare strings only.
	assert.Equal(t, []string{"1001", "Ana García", "30"}, rows[1])
}

func TestAppendRowStampsSyncTimestamp(t *testing.T) {
	api := &fakeValues{}
	a := testAdapter(api)

	require.NoError(t, a.AppendRow(context.Background(), fullRow()))
	assert.Equal(t, 1, api.appendCalls)

	cells := api.lastVR.Values[0]
	require.Len(t, cells, rowWidth)
	assert.Equal(t, "2025-03-09T12:00:00Z", cells[rowWidth-1])
}

func TestAppendRowRejectsWrongWidth(t *testing.T) {
	a := testAdapter(&fakeValues{})
	err := a.AppendRow(context.Background(), []string{"too", "short"})
	assert.Error(t, err)
}

func TestUpdateRowAddressesExactRange(t *testing.T) {
	api := &fakeValues{}
	a := testAdapter(api)

	require.NoError(t, a.UpdateRow(context.Background(), 7, fullRow()))
	assert.Equal(t, "Citas!A7:O7", api.lastRange)
}

func TestUpdateRowRefusesHeader(t *testing.T) {
	a := testAdapter(&fakeValues{})
	assert.Error(t, a.UpdateRow(context.Background(), 1, fullRow()))
	assert.Error(t, a.UpdateRow(context.Background(), 0, fullRow()))
}

func TestRetriesOnRateLimit(t *testing.T) {
	api := &fakeValues{
		appendErrs: []error{
			&googleapi.Error{Code: 429},
			&googleapi.Error{Code: 503},
			nil,
		},
	}
	a := testAdapter(api)

	require.NoError(t, a.AppendRow(context.Background(), fullRow()))
	assert.Equal(t, 3, api.appendCalls)
}

func TestNoRetryOnPermanentError(t *testing.T) {
	api := &fakeValues{
		appendErrs: []error{&googleapi.Error{Code: 403}},
	}
	a := testAdapter(api)

	err := a.AppendRow(context.Background(), fullRow())
	assert.Error(t, err)
	assert.Equal(t, 1, api.appendCalls)
}

func TestRetriesExhausted(t *testing.T) {
	api := &fakeValues{
		getErrs: []error{
			&googleapi.Error{Code: 500},
			&googleapi.Error{Code: 500},
			&googleapi.Error{Code: 500},
		},
	}
	a := testAdapter(api)

	_, err := a.ReadAll(context.Background())
	require.Error(t, err)
	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 3, api.getCalls)
}
