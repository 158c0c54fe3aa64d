package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestRuleCreate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO automation_rules").
		WithArgs(pgxmock.AnyArg(), "recordatorio", "appointment_day_before", "10:00",
			true, "Hola {nombre}", []string(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Rule{
		Name:        "recordatorio",
		TriggerType: TriggerDayBefore,
		TriggerTime: "10:00",
		Enabled:     true,
		Template:    "Hola {nombre}",
	}
	if err := store.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSetEnabledMissingRule(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE automation_rules").
		WithArgs(false, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := store.SetEnabled(context.Background(), id, false); err == nil {
		t.Fatal("expected error for missing rule")
	}
}

func TestListEnabled(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM automation_rules").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "trigger_type", "trigger_time", "enabled", "template", "keywords", "created_at", "updated_at",
		}).AddRow(
			uuid.New(), "consentimiento", "surgery_reminder", "18:00", true,
			"Instrucciones para {tratamiento}", []string{"implante"}, now, now,
		))

	rules, err := store.ListEnabled(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].TriggerType != TriggerSurgery {
		t.Errorf("unexpected trigger type: %s", rules[0].TriggerType)
	}
	if len(rules[0].Keywords) != 1 || rules[0].Keywords[0] != "implante" {
		t.Errorf("unexpected keywords: %v", rules[0].Keywords)
	}
}
