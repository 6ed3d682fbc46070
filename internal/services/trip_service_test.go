package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func newTripFixture(t *testing.T) (*TripService, *fakeTripRepo, *fakeAlertRepo, *fakeLocationRepo) {
	t.Helper()
	trips := newFakeTripRepo()
	alerts := newFakeAlertRepo()
	locations := newFakeLocationRepo()
	s := NewTripService(nil, trips, locations, alerts)
	return s, trips, alerts, locations
}

func startInput() StartTripInput {
	return StartTripInput{
		ArrivalLat:      ptrF(48.8566),
		ArrivalLng:      ptrF(2.3522),
		ArrivalAddress:  "Place de la Concorde",
		DurationMinutes: 30,
	}
}

func TestStart_Validation(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   StartTripInput
		want error
	}{
		{"too short", StartTripInput{ArrivalAddress: "x", DurationMinutes: 4}, ErrInvalidDuration},
		{"too long", StartTripInput{ArrivalAddress: "x", DurationMinutes: 481}, ErrInvalidDuration},
		{"no endpoints", StartTripInput{DurationMinutes: 30}, ErrMissingEndpoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Start(ctx, "u1", tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestStart_ComputesArrivalAndBounds(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(context.Background(), "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if trip.Status != domain.TripActive {
		t.Fatalf("status = %q; want active", trip.Status)
	}
	if trip.StartedAt == nil || !trip.StartedAt.Equal(t0) {
		t.Fatalf("started_at = %v; want %v", trip.StartedAt, t0)
	}
	want := t0.Add(30 * time.Minute)
	if trip.EstimatedArrivalAt == nil || !trip.EstimatedArrivalAt.Equal(want) {
		t.Fatalf("estimated_arrival_at = %v; want %v", trip.EstimatedArrivalAt, want)
	}
}

func TestStart_OneInFlightTripPerOwner(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1", startInput()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := s.Start(ctx, "u1", startInput()); !errors.Is(err, ErrActiveTripExists) {
		t.Fatalf("second Start err = %v; want ErrActiveTripExists", err)
	}
	if _, err := s.Start(ctx, "u2", startInput()); err != nil {
		t.Fatalf("other owner must not be blocked: %v", err)
	}
}

func TestExtend_AddsMinutes(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := *trip.EstimatedArrivalAt

	got, err := s.Extend(ctx, "u1", trip.ID, 15)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if want := before.Add(15 * time.Minute); !got.EstimatedArrivalAt.Equal(want) {
		t.Fatalf("arrival = %v; want %v", got.EstimatedArrivalAt, want)
	}
	if got.EstimatedDurationMin != 45 {
		t.Fatalf("duration = %d; want 45", got.EstimatedDurationMin)
	}
}

func TestExtend_RequiresActive(t *testing.T) {
	s, trips, _, _ := newTripFixture(t)
	ctx := context.Background()

	arrival := time.Now().UTC().Add(time.Hour)
	trips.put(&domain.Trip{ID: "t1", OwnerID: "u1", Status: domain.TripCompleted, EstimatedArrivalAt: &arrival})

	if _, err := s.Extend(ctx, "u1", "t1", 10); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v; want ErrInvalidTransition", err)
	}
	if _, err := s.Extend(ctx, "u1", "missing", 10); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("err = %v; want ErrTripNotFound", err)
	}
}

func TestComplete_GatedOnIdentity(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()
	id := &fakeIdentity{}
	s.Identity = id

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := s.Complete(ctx, "u1", trip.ID, "wrong-pin"); !errors.Is(err, ErrIdentityNotConfirmed) {
		t.Fatalf("unconfirmed: err = %v; want ErrIdentityNotConfirmed", err)
	}

	id.ok = true
	got, err := s.Complete(ctx, "u1", trip.ID, "good-pin")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != domain.TripCompleted || got.CompletedAt == nil {
		t.Fatalf("trip = %+v; want completed with timestamp", got)
	}
	if id.gotOwner != "u1" || id.gotProof != "good-pin" {
		t.Fatalf("confirm args = %q, %q", id.gotOwner, id.gotProof)
	}

	// Terminal now; a second complete is an invalid transition.
	if _, err := s.Complete(ctx, "u1", trip.ID, "good-pin"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("recomplete: err = %v; want ErrInvalidTransition", err)
	}
}

func TestCancel_NotifiesContactsBestEffort(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()

	notices := make(chan string, 1)
	s.Cancellation = cancellationFunc(func(ctx context.Context, trip *domain.Trip) (*DispatchResult, error) {
		notices <- trip.ID
		return &DispatchResult{NotifiedCount: 1}, nil
	})

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, err := s.Cancel(ctx, "u1", trip.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != domain.TripCancelled || got.CancelledAt == nil {
		t.Fatalf("trip = %+v; want cancelled with timestamp", got)
	}

	select {
	case id := <-notices:
		if id != trip.ID {
			t.Fatalf("notified trip %q; want %q", id, trip.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation notice never sent")
	}

	if _, err := s.Cancel(ctx, "u1", trip.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("recancel: err = %v; want ErrInvalidTransition", err)
	}
}

// cancellationFunc adapts a function to CancellationNotifier.
type cancellationFunc func(ctx context.Context, trip *domain.Trip) (*DispatchResult, error)

func (f cancellationFunc) NotifyCancellation(ctx context.Context, trip *domain.Trip) (*DispatchResult, error) {
	return f(ctx, trip)
}

func TestRecordLocation_GatedPerTrip(t *testing.T) {
	s, _, _, locations := newTripFixture(t)
	ctx := context.Background()
	s.Limiter = ratelimit.NewMemoryLimiter(time.Minute)

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.RecordLocation(ctx, "u1", trip.ID, 48.85, 2.35, ptrI(80), time.Time{}); err != nil {
		t.Fatalf("first sample: %v", err)
	}
	err = s.RecordLocation(ctx, "u1", trip.ID, 48.86, 2.36, nil, time.Time{})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("second sample err = %v; want RateLimitedError", err)
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("retry hint = %v; want positive", rl.RetryAfter)
	}
	if len(locations.samples) != 1 {
		t.Fatalf("stored samples = %d; want 1", len(locations.samples))
	}
}

func TestCheckTimeout_BufferBoundary(t *testing.T) {
	// A 30-minute trip started at t0 must not escalate at t0+34min and must
	// escalate at t0+36min (5-minute buffer).
	s, trips, alerts, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput()) // 30 minutes
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.now = func() time.Time { return t0.Add(34 * time.Minute) }
	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}
	if res.Triggered || res.Status != domain.TripActive {
		t.Fatalf("inside buffer: %+v; want untriggered active", res)
	}
	if got, _ := trips.GetTrip(ctx, nil, trip.ID); got.Status != domain.TripActive {
		t.Fatalf("trip status mutated to %q inside buffer", got.Status)
	}

	s.now = func() time.Time { return t0.Add(36 * time.Minute) }
	res, err = s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}
	if !res.Triggered || res.Status != domain.TripTimeout || res.AlertID == "" {
		t.Fatalf("past buffer: %+v; want triggered timeout with alert id", res)
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 1 {
		t.Fatal("expected exactly one timeout alert")
	}
}

func TestCheckTimeout_IdempotentUnderRedelivery(t *testing.T) {
	s, _, alerts, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	first, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("first CheckTimeout: %v", err)
	}
	second, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("second CheckTimeout: %v", err)
	}
	third, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("third CheckTimeout: %v", err)
	}

	if !first.Triggered {
		t.Fatal("first invocation must trigger")
	}
	if second.Triggered || third.Triggered {
		t.Fatal("redundant invocations must be no-ops")
	}
	if second.AlertID != first.AlertID || second.Status != domain.TripTimeout {
		t.Fatalf("redundant result = %+v; want existing alert %q", second, first.AlertID)
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 1 {
		t.Fatal("expected exactly one timeout alert across invocations")
	}
}

func TestCheckTimeout_AttachesLatestLocation(t *testing.T) {
	s, _, alerts, locations := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = locations.CreateLocationSample(ctx, nil, &domain.LocationSample{
		ID: "s1", TripID: trip.ID, Lat: 48.1, Lng: 2.1, RecordedAt: t0.Add(5 * time.Minute)})
	_ = locations.CreateLocationSample(ctx, nil, &domain.LocationSample{
		ID: "s2", TripID: trip.ID, Lat: 48.2, Lng: 2.2, BatteryLevel: ptrI(15), RecordedAt: t0.Add(20 * time.Minute)})

	s.now = func() time.Time { return t0.Add(time.Hour) }
	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}

	a, err := alerts.GetAlert(ctx, nil, res.AlertID)
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if a.Lat == nil || *a.Lat != 48.2 || a.Lng == nil || *a.Lng != 2.2 {
		t.Fatalf("alert location = %v,%v; want newest sample", a.Lat, a.Lng)
	}
	if a.BatteryLevel == nil || *a.BatteryLevel != 15 {
		t.Fatalf("alert battery = %v; want 15", a.BatteryLevel)
	}
}

func TestCheckTimeout_DispatchesOnce(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()
	n := newFakeNotifier()
	s.Notifier = n
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}
	if _, err := s.CheckTimeout(ctx, trip.ID); err != nil {
		t.Fatalf("redundant CheckTimeout: %v", err)
	}

	id, ok := n.wait(2 * time.Second)
	if !ok {
		t.Fatal("dispatch never happened")
	}
	if id != res.AlertID {
		t.Fatalf("dispatched %q; want %q", id, res.AlertID)
	}
	if _, again := n.wait(100 * time.Millisecond); again {
		t.Fatal("redundant check must not dispatch a second time")
	}
}

func TestCheckTimeout_AlertInsertFailureKeepsTripRetryable(t *testing.T) {
	// A store failure while minting the alert must leave the trip active so
	// the next sweep still lists it and the escalation is never lost.
	s, trips, alerts, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	alerts.createErr = errors.New("disk full")
	if _, err := s.CheckTimeout(ctx, trip.ID); err == nil {
		t.Fatal("expected the insert failure to surface")
	}
	if got, _ := trips.GetTrip(ctx, nil, trip.ID); got.Status != domain.TripActive {
		t.Fatalf("trip status after failed escalation = %q; want active", got.Status)
	}
	ids, err := trips.ListOverdueActive(ctx, nil, s.now(), s.TimeoutBuffer, 10)
	if err != nil {
		t.Fatalf("ListOverdueActive: %v", err)
	}
	if len(ids) != 1 || ids[0] != trip.ID {
		t.Fatalf("overdue list after failure = %v; want [%s]", ids, trip.ID)
	}

	alerts.createErr = nil
	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("retry CheckTimeout: %v", err)
	}
	if !res.Triggered || res.Status != domain.TripTimeout || res.AlertID == "" {
		t.Fatalf("retry result = %+v; want triggered timeout with alert id", res)
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 1 {
		t.Fatal("expected exactly one timeout alert after the retry")
	}
}

func TestCheckTimeout_StatusWriteFailureReusesAlert(t *testing.T) {
	// A store failure after the alert insert must not double-mint: the retry
	// adopts the existing alert row and completes the status write.
	s, trips, alerts, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	trips.updateErr = errors.New("connection reset")
	if _, err := s.CheckTimeout(ctx, trip.ID); err == nil {
		t.Fatal("expected the status write failure to surface")
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 1 {
		t.Fatal("alert row must survive the failed status write")
	}
	existing, err := alerts.FindTimeoutAlertForTrip(ctx, nil, trip.ID)
	if err != nil {
		t.Fatalf("FindTimeoutAlertForTrip: %v", err)
	}

	trips.updateErr = nil
	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("retry CheckTimeout: %v", err)
	}
	if !res.Triggered || res.AlertID != existing.ID {
		t.Fatalf("retry result = %+v; want triggered with reused alert %q", res, existing.ID)
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 1 {
		t.Fatal("retry must reuse the existing alert, not mint a second one")
	}
}

// alertsCreatedCount reads the current value of the alert-creation counter
// for one alert type from the default Prometheus gatherer.
func alertsCreatedCount(t *testing.T, alertType string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "prudency_alerts_created_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "type" && l.GetValue() == alertType {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCheckTimeout_CountsTimeoutAlerts(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	base := alertsCreatedCount(t, domain.AlertTimeout)
	if _, err := s.CheckTimeout(ctx, trip.ID); err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}
	if _, err := s.CheckTimeout(ctx, trip.ID); err != nil {
		t.Fatalf("redundant CheckTimeout: %v", err)
	}
	if got := alertsCreatedCount(t, domain.AlertTimeout); got != base+1 {
		t.Fatalf("timeout alert counter = %v; want %v", got, base+1)
	}
}

func TestCheckTimeout_LostRaceDiscardsMintedAlert(t *testing.T) {
	s, trips, alerts, _ := newTripFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	trip, err := s.Start(ctx, "u1", startInput())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }

	trips.loseNextUpdate = true
	res, err := s.CheckTimeout(ctx, trip.ID)
	if err != nil {
		t.Fatalf("CheckTimeout: %v", err)
	}
	if res.Triggered {
		t.Fatal("losing the conditional write must not report an escalation")
	}
	if alerts.countType(trip.ID, domain.AlertTimeout) != 0 {
		t.Fatal("the loser's alert must be discarded")
	}
}

func TestCheckTimeout_MissingTrip(t *testing.T) {
	s, _, _, _ := newTripFixture(t)
	if _, err := s.CheckTimeout(context.Background(), "nope"); !errors.Is(err, ErrTripNotFound) {
		t.Fatalf("err = %v; want ErrTripNotFound", err)
	}
}

func TestOverdueTripIDs(t *testing.T) {
	s, trips, _, _ := newTripFixture(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	overdue := now.Add(-10 * time.Minute)
	grace := now.Add(-4 * time.Minute)
	trips.put(&domain.Trip{ID: "late", OwnerID: "u1", Status: domain.TripActive, EstimatedArrivalAt: &overdue})
	trips.put(&domain.Trip{ID: "grace", OwnerID: "u2", Status: domain.TripActive, EstimatedArrivalAt: &grace})
	trips.put(&domain.Trip{ID: "done", OwnerID: "u3", Status: domain.TripCompleted, EstimatedArrivalAt: &overdue})

	ids, err := s.OverdueTripIDs(ctx, 0)
	if err != nil {
		t.Fatalf("OverdueTripIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "late" {
		t.Fatalf("ids = %v; want [late]", ids)
	}
}
