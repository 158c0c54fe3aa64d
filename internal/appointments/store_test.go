package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

var apptColumns = []string{
	"id", "legacy_id", "contact_id", "contact_name", "phone", "scheduled_at", "duration_min",
	"treatment", "doctor", "status", "notes", "reminder_sent", "consent_sent",
	"synced_to_spreadsheet", "last_synced_at", "created_at", "updated_at",
}

func apptRow(id uuid.UUID, legacyID string) *pgxmock.Rows {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(apptColumns).AddRow(
		id, legacyID, uuid.New(), "Ana García", "+34600111222", now, 30,
		"Limpieza", "Dra. Ruiz", "scheduled", "", false, false,
		false, (*time.Time)(nil), now, now,
	)
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

func TestGetByLegacyID(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE legacy_id").
		WithArgs("A-77").
		WillReturnRows(apptRow(id, "A-77"))

	appt, err := store.GetByLegacyID(context.Background(), "A-77")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.ID != id {
		t.Errorf("expected id %s, got %s", id, appt.ID)
	}
	if appt.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", appt.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByLegacyIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE legacy_id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(apptColumns))

	_, err := store.GetByLegacyID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), "A-77", pgxmock.AnyArg(), "Ana García", "+34600111222",
			pgxmock.AnyArg(), 30, "Limpieza", "Dra. Ruiz", "scheduled", "",
			false, false, false, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	appt := &Appointment{
		LegacyID:    "A-77",
		ContactName: "Ana García",
		Phone:       "+34600111222",
		ScheduledAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		DurationMin: 30,
		Treatment:   "Limpieza",
		Doctor:      "Dra. Ruiz",
	}
	if err := store.Create(context.Background(), appt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if appt.Status != StatusScheduled {
		t.Errorf("expected default status scheduled, got %s", appt.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateFromSyncMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs("Ana García", "+34600111222", pgxmock.AnyArg(), 30,
			"Limpieza", "Dra. Ruiz", "scheduled", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateFromSync(context.Background(), &Appointment{
		ID:          uuid.New(),
		ContactName: "Ana García",
		Phone:       "+34600111222",
		ScheduledAt: time.Now(),
		DurationMin: 30,
		Treatment:   "Limpieza",
		Doctor:      "Dra. Ruiz",
		Status:      StatusScheduled,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkReminderSentGuard(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments SET reminder_sent = TRUE").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.MarkReminderSent(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The WHERE guard makes a second attempt touch zero rows.
	mock.ExpectExec("UPDATE appointments SET reminder_sent = TRUE").
		WithArgs(pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := store.MarkReminderSent(context.Background(), id); err == nil {
		t.Fatal("expected error for already-sent appointment")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResetSentFlags(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectExec("UPDATE appointments").
		WithArgs(pgxmock.AnyArg(), from, to).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := store.ResetSentFlags(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7 rows reset, got %d", n)
	}
}

func TestListRemindersDue(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(from, to).
		WillReturnRows(apptRow(uuid.New(), "A-77"))

	due, err := store.ListRemindersDue(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(due))
	}
	if due[0].LegacyID != "A-77" {
		t.Errorf("expected legacy id A-77, got %s", due[0].LegacyID)
	}
}

func TestCountPending(t *testing.T) {
	store, mock := newMockStore(t)
	from := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT").
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows([]string{"reminders", "consents"}).AddRow(int64(3), int64(1)))

	counts, err := store.CountPending(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.RemindersPending != 3 || counts.ConsentsPending != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}
