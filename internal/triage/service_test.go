package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/dentalsync/internal/notify"
)

type fakeStatusStore struct {
	statuses map[string]*ConversationStatus
	resolved []string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: map[string]*ConversationStatus{}}
}

func (f *fakeStatusStore) Get(ctx context.Context, sessionID string) (*ConversationStatus, error) {
	if cs, ok := f.statuses[sessionID]; ok {
		copied := *cs
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStatusStore) Upsert(ctx context.Context, cs *ConversationStatus) error {
	f.statuses[cs.SessionID] = cs
	return nil
}

func (f *fakeStatusStore) Resolve(ctx context.Context, sessionID, doctor string) error {
	cs, ok := f.statuses[sessionID]
	if !ok {
		return ErrNotFound
	}
	cs.UrgencyColor = ColorGreen
	cs.AssignedDoctor = doctor
	f.resolved = append(f.resolved, sessionID)
	return nil
}

type fakeAlerter struct {
	alerts []notify.UrgentAlert
	err    error
}

func (f *fakeAlerter) AlertUrgent(ctx context.Context, alert notify.UrgentAlert) error {
	f.alerts = append(f.alerts, alert)
	return f.err
}

type fakeDetector struct {
	specialty string
	err       error
	calls     int
}

func (f *fakeDetector) DetectSpecialty(ctx context.Context, message string) (string, error) {
	f.calls++
	return f.specialty, f.err
}

func newTestService(t *testing.T, cfg ServiceConfig) *Service {
	t.Helper()
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func TestHandleInboundNewConversation(t *testing.T) {
	store := newFakeStatusStore()
	svc := newTestService(t, ServiceConfig{Store: store})

	out, err := svc.HandleInbound(context.Background(), "s-1", "+34600111222", "quiero agendar una cita")
	require.NoError(t, err)

	assert.Equal(t, ColorBlack, out.Status.UrgencyColor)
	assert.Equal(t, ActionOfferBooking, out.Action)
	assert.True(t, out.Status.PendingResponse)
	assert.Equal(t, "Solicita cita", out.Status.StatusDescription)

	stored, err := store.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "+34600111222", stored.Phone)
}

func TestHandleInboundRequiresSessionID(t *testing.T) {
	svc := newTestService(t, ServiceConfig{Store: newFakeStatusStore()})

	_, err := svc.HandleInbound(context.Background(), "", "+34600111222", "hola")
	assert.Error(t, err)
}

func TestHandleInboundUrgencyNeverImproves(t *testing.T) {
	store := newFakeStatusStore()
	pain := 9
	store.statuses["s-1"] = &ConversationStatus{
		SessionID:    "s-1",
		Phone:        "+34600111222",
		PainLevel:    &pain,
		UrgencyColor: ColorRed,
		CreatedAt:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	svc := newTestService(t, ServiceConfig{Store: store})

	out, err := svc.HandleInbound(context.Background(), "s-1", "", "gracias por la información")
	require.NoError(t, err)

	// A calm follow-up keeps the red flag and the recorded pain level.
	assert.Equal(t, ColorRed, out.Status.UrgencyColor)
	require.NotNil(t, out.Status.PainLevel)
	assert.Equal(t, 9, *out.Status.PainLevel)
	assert.Equal(t, "+34600111222", out.Status.Phone)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), out.Status.CreatedAt)
}

func TestHandleInboundRedTriggersStaffAlert(t *testing.T) {
	store := newFakeStatusStore()
	alerter := &fakeAlerter{}
	svc := newTestService(t, ServiceConfig{Store: store, Alerter: alerter})

	_, err := svc.HandleInbound(context.Background(), "s-1", "+34600111222", "dolor de muela, dolor de 9")
	require.NoError(t, err)

	require.Len(t, alerter.alerts, 1)
	alert := alerter.alerts[0]
	assert.Equal(t, "s-1", alert.SessionID)
	assert.Equal(t, "+34600111222", alert.Phone)
	require.NotNil(t, alert.PainLevel)
	assert.Equal(t, 9, *alert.PainLevel)
}

func TestHandleInboundAlertFailureIsNotFatal(t *testing.T) {
	store := newFakeStatusStore()
	alerter := &fakeAlerter{err: errors.New("smtp down")}
	svc := newTestService(t, ServiceConfig{Store: store, Alerter: alerter})

	out, err := svc.HandleInbound(context.Background(), "s-1", "", "dolor de 10")
	require.NoError(t, err)
	assert.Equal(t, ColorRed, out.Status.UrgencyColor)
}

func TestHandleInboundDetectorFillsMissingSpecialty(t *testing.T) {
	store := newFakeStatusStore()
	detector := &fakeDetector{specialty: SpecialtyImplantology}
	svc := newTestService(t, ServiceConfig{Store: store, Detector: detector})

	out, err := svc.HandleInbound(context.Background(), "s-1", "", "se me cayó una pieza dental hace un mes")
	require.NoError(t, err)

	assert.Equal(t, 1, detector.calls)
	assert.Equal(t, SpecialtyImplantology, out.Status.NeededSpecialty)
	assert.Equal(t, ActionReferSpecialist, out.Action)
	// Keyword miss plus detector hit still leaves urgency untouched.
	assert.Equal(t, ColorGray, out.Status.UrgencyColor)
}

func TestHandleInboundDetectorSkippedWhenKeywordsMatch(t *testing.T) {
	store := newFakeStatusStore()
	detector := &fakeDetector{specialty: SpecialtyCosmetic}
	svc := newTestService(t, ServiceConfig{Store: store, Detector: detector})

	out, err := svc.HandleInbound(context.Background(), "s-1", "", "quiero ponerme brackets")
	require.NoError(t, err)

	assert.Zero(t, detector.calls)
	assert.Equal(t, SpecialtyOrthodontics, out.Status.NeededSpecialty)
}

func TestHandleInboundDetectorFailureDegrades(t *testing.T) {
	store := newFakeStatusStore()
	detector := &fakeDetector{err: errors.New("model timeout")}
	svc := newTestService(t, ServiceConfig{Store: store, Detector: detector})

	out, err := svc.HandleInbound(context.Background(), "s-1", "", "tengo una consulta")
	require.NoError(t, err)
	assert.Empty(t, out.Status.NeededSpecialty)
	assert.Equal(t, ActionProvideInfo, out.Action)
}

func TestResolveRemovesFromStore(t *testing.T) {
	store := newFakeStatusStore()
	store.statuses["s-1"] = &ConversationStatus{SessionID: "s-1", UrgencyColor: ColorBlack}
	svc := newTestService(t, ServiceConfig{Store: store})

	require.NoError(t, svc.Resolve(context.Background(), "s-1", "Dra. Ruiz"))
	assert.Equal(t, []string{"s-1"}, store.resolved)
	assert.Equal(t, ColorGreen, store.statuses["s-1"].UrgencyColor)
	assert.Equal(t, "Dra. Ruiz", store.statuses["s-1"].AssignedDoctor)

	assert.ErrorIs(t, svc.Resolve(context.Background(), "missing", ""), ErrNotFound)
}
