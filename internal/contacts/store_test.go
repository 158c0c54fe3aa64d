package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

var contactCols = []string{"id", "full_name", "phone", "source", "created_at", "updated_at"}

func contactRow(id uuid.UUID, name, phone string) *pgxmock.Rows {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(contactCols).AddRow(id, name, phone, "imported", now, now)
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestResolvePrefersPhoneMatch(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("+34600111222").
		WillReturnRows(contactRow(id, "Ana García", "+34600111222"))

	c, err := store.Resolve(context.Background(), "Ana García", "+34600111222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != id {
		t.Errorf("expected id %s, got %s", id, c.ID)
	}
	if c.Source != SourceImported {
		t.Errorf("expected imported source, got %s", c.Source)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveFallsBackToNormalizedName(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("+34600111222").
		WillReturnRows(pgxmock.NewRows(contactCols))
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("ana garcía").
		WillReturnRows(contactRow(id, "Ana García", ""))

	c, err := store.Resolve(context.Background(), "  Ana   García ", "+34600111222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != id {
		t.Errorf("expected id %s, got %s", id, c.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("+34600111222").
		WillReturnRows(pgxmock.NewRows(contactCols))
	mock.ExpectQuery("SELECT (.+) FROM contacts").
		WithArgs("ana garcía").
		WillReturnRows(pgxmock.NewRows(contactCols))

	_, err := store.Resolve(context.Background(), "Ana García", "+34600111222")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDefaultsToManualSource(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs(pgxmock.AnyArg(), "Ana García", "+34600111222", "manual",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &Contact{FullName: "Ana García", Phone: "+34600111222"}
	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if c.Source != SourceManual {
		t.Errorf("expected manual source, got %s", c.Source)
	}
}
