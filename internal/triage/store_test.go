package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

var statusCols = []string{
	"session_id", "phone", "last_message", "pain_level", "urgency_color",
	"status_description", "pending_response", "assigned_doctor", "needed_specialty",
	"resolved_at", "created_at", "updated_at",
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

func TestStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	pain := 9

	mock.ExpectQuery("SELECT (.+) FROM conversation_status WHERE session_id").
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(statusCols).AddRow(
			"s-1", "+34600111222", "me duele mucho", &pain, "red",
			"Dolor severo, llamar de inmediato", true, "", "Endodontics",
			(*time.Time)(nil), now, now,
		))

	cs, err := store.Get(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.UrgencyColor != ColorRed {
		t.Errorf("expected red, got %s", cs.UrgencyColor)
	}
	if cs.PainLevel == nil || *cs.PainLevel != 9 {
		t.Errorf("unexpected pain level: %v", cs.PainLevel)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM conversation_status WHERE session_id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(statusCols))

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUpsertSetsTimestamps(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO conversation_status").
		WithArgs("s-1", "+34600111222", "hola", (*int)(nil), "gray",
			"Consulta general", true, "", "",
			(*time.Time)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cs := &ConversationStatus{
		SessionID:         "s-1",
		Phone:             "+34600111222",
		LastMessage:       "hola",
		UrgencyColor:      ColorGray,
		StatusDescription: "Consulta general",
		PendingResponse:   true,
	}
	if err := store.Upsert(context.Background(), cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.CreatedAt.IsZero() || cs.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStoreResolve(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE conversation_status").
		WithArgs("green", "Dra. Ruiz", pgxmock.AnyArg(), "s-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.Resolve(context.Background(), "s-1", "Dra. Ruiz"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE conversation_status").
		WithArgs("green", "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.Resolve(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListPending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM conversation_status").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(statusCols).
			AddRow("s-red", "+34600111222", "dolor 9", (*int)(nil), "red",
				"Dolor severo, llamar de inmediato", true, "", "", (*time.Time)(nil), now, now).
			AddRow("s-gray", "+34600333444", "horario?", (*int)(nil), "gray",
				"Consulta general", true, "", "", (*time.Time)(nil), now, now))

	pending, err := store.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(pending))
	}
	if pending[0].SessionID != "s-red" {
		t.Errorf("expected most urgent first, got %s", pending[0].SessionID)
	}
}
