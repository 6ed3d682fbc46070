package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
)

// In-memory fakes for the repository and collaborator interfaces. They
// reproduce the real repos' conditional-write semantics (RowsAffected style
// outcomes) so the services' race handling is exercised for real.

// ----- Trip repo -----

type fakeTripRepo struct {
	mu    sync.Mutex
	trips map[string]*domain.Trip

	createErr error
	getErr    error
	countErr  error
	updateErr error

	// loseNextUpdate makes the next conditional write report a lost race
	// without changing the row, as if another caller transitioned first.
	loseNextUpdate bool
}

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{trips: map[string]*domain.Trip{}}
}

func (r *fakeTripRepo) put(t *domain.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.trips[t.ID] = &cp
}

func (r *fakeTripRepo) CreateTrip(ctx context.Context, db *gorm.DB, t *domain.Trip) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(t)
	return nil
}

func (r *fakeTripRepo) GetTrip(ctx context.Context, db *gorm.DB, id string) (*domain.Trip, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTripRepo) GetOwnedTrip(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Trip, error) {
	t, err := r.GetTrip(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (r *fakeTripRepo) CountTripsInStatuses(ctx context.Context, db *gorm.DB, ownerID string, statuses []string) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.trips {
		if t.OwnerID != ownerID {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *fakeTripRepo) UpdateTripStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	if r.updateErr != nil {
		return false, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loseNextUpdate {
		r.loseNextUpdate = false
		return false, nil
	}
	t, ok := r.trips[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	for k, v := range extra {
		at, ok := v.(time.Time)
		if !ok {
			continue
		}
		switch k {
		case "completed_at":
			t.CompletedAt = &at
		case "cancelled_at":
			t.CancelledAt = &at
		}
	}
	return true, nil
}

func (r *fakeTripRepo) ExtendTripArrival(ctx context.Context, db *gorm.DB, id, ownerID string, prevArrival, newArrival time.Time, addMinutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok || t.OwnerID != ownerID || t.Status != domain.TripActive ||
		t.EstimatedArrivalAt == nil || !t.EstimatedArrivalAt.Equal(prevArrival) {
		return gorm.ErrRecordNotFound
	}
	t.EstimatedArrivalAt = &newArrival
	t.EstimatedDurationMin += addMinutes
	return nil
}

func (r *fakeTripRepo) ListOverdueActive(ctx context.Context, db *gorm.DB, now time.Time, buffer time.Duration, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, t := range r.trips {
		if t.Status == domain.TripActive && t.EstimatedArrivalAt != nil &&
			t.EstimatedArrivalAt.Before(now.Add(-buffer)) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeTripRepo) ListTripsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Trip
	for _, t := range r.trips {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.Trip{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTripRepo) CountTrips(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.trips {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// ----- Alert repo -----

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []*domain.Alert

	createErr error
}

func newFakeAlertRepo() *fakeAlertRepo { return &fakeAlertRepo{} }

func (r *fakeAlertRepo) CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts = append(r.alerts, &cp)
	return nil
}

func (r *fakeAlertRepo) GetAlert(ctx context.Context, db *gorm.DB, id string) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAlertRepo) CountAlertsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.alerts {
		if a.OwnerID == ownerID && !a.TriggeredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeAlertRepo) FindTimeoutAlertForTrip(ctx context.Context, db *gorm.DB, tripID string) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.TripID != nil && *a.TripID == tripID && a.Type == domain.AlertTimeout {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAlertRepo) DeleteAlert(ctx context.Context, db *gorm.DB, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.alerts {
		if a.ID == id {
			r.alerts = append(r.alerts[:i], r.alerts[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeAlertRepo) UpdateAlertStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID != id || a.Status != from {
			continue
		}
		a.Status = to
		for k, v := range extra {
			at, ok := v.(time.Time)
			if !ok {
				continue
			}
			switch k {
			case "acknowledged_at":
				a.AcknowledgedAt = &at
			case "resolved_at":
				a.ResolvedAt = &at
			}
		}
		return true, nil
	}
	return false, nil
}

func (r *fakeAlertRepo) ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Alert
	for _, a := range r.alerts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if offset >= len(out) {
		return []domain.Alert{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) CountAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.alerts {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *fakeAlertRepo) countType(tripID, typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.alerts {
		if a.Type == typ && a.TripID != nil && *a.TripID == tripID {
			n++
		}
	}
	return n
}

// ----- Contact repo -----

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []*domain.TrustedContact

	listErr   error
	recordErr error
}

func newFakeContactRepo(cs ...domain.TrustedContact) *fakeContactRepo {
	r := &fakeContactRepo{}
	for _, c := range cs {
		cp := c
		r.contacts = append(r.contacts, &cp)
	}
	return r
}

func (r *fakeContactRepo) CreateContact(ctx context.Context, db *gorm.DB, c *domain.TrustedContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts = append(r.contacts, &cp)
	return nil
}

func (r *fakeContactRepo) GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.TrustedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeContactRepo) GetContactByToken(ctx context.Context, db *gorm.DB, token string) (*domain.TrustedContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.InvitationToken != nil && *c.InvitationToken == token {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeContactRepo) ListContacts(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.TrustedContact, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TrustedContact
	for _, c := range r.contacts {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) RecordInvitationSend(ctx context.Context, db *gorm.DB, id, token string, count int, sentAt time.Time) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id {
			tok := token
			at := sentAt
			c.InvitationToken = &tok
			c.InvitationCount = count
			c.InvitationSentAt = &at
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeContactRepo) MarkInvitationAccepted(ctx context.Context, db *gorm.DB, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id && c.InvitationToken != nil && *c.InvitationToken == token {
			c.InvitationAccepted = true
			c.InvitationToken = nil
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ----- Verification-code repo -----

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes []*domain.VerificationCode

	createErr error
}

func newFakeCodeRepo() *fakeCodeRepo { return &fakeCodeRepo{} }

func (r *fakeCodeRepo) CreateVerificationCode(ctx context.Context, db *gorm.DB, vc *domain.VerificationCode) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vc.CreatedAt.IsZero() {
		vc.CreatedAt = time.Now().UTC()
	}
	cp := *vc
	r.codes = append(r.codes, &cp)
	return nil
}

func (r *fakeCodeRepo) LatestUsableCode(ctx context.Context, db *gorm.DB, ownerID, phone string, now time.Time) (*domain.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.VerificationCode
	for _, vc := range r.codes {
		if vc.OwnerID != ownerID || vc.Phone != phone || vc.VerifiedAt != nil || vc.ExpiresAt.Before(now) {
			continue
		}
		if best == nil || vc.CreatedAt.After(best.CreatedAt) {
			best = vc
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeCodeRepo) CountCodesIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, vc := range r.codes {
		if vc.OwnerID == ownerID && vc.Phone == phone && !vc.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeCodeRepo) OldestCodeIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest time.Time
	for _, vc := range r.codes {
		if vc.OwnerID != ownerID || vc.Phone != phone || vc.CreatedAt.Before(since) {
			continue
		}
		if oldest.IsZero() || vc.CreatedAt.Before(oldest) {
			oldest = vc.CreatedAt
		}
	}
	if oldest.IsZero() {
		return time.Time{}, gorm.ErrRecordNotFound
	}
	return oldest, nil
}

func (r *fakeCodeRepo) IncrementCodeAttempts(ctx context.Context, db *gorm.DB, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vc := range r.codes {
		if vc.ID == id {
			vc.Attempts++
			return vc.Attempts, nil
		}
	}
	return 0, gorm.ErrRecordNotFound
}

func (r *fakeCodeRepo) MarkCodeVerified(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vc := range r.codes {
		if vc.ID == id && vc.VerifiedAt == nil {
			stamp := at
			vc.VerifiedAt = &stamp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeCodeRepo) attempts(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vc := range r.codes {
		if vc.ID == id {
			return vc.Attempts
		}
	}
	return -1
}

// ----- Location repo -----

type fakeLocationRepo struct {
	mu      sync.Mutex
	samples []*domain.LocationSample
}

func newFakeLocationRepo() *fakeLocationRepo { return &fakeLocationRepo{} }

func (r *fakeLocationRepo) CreateLocationSample(ctx context.Context, db *gorm.DB, s *domain.LocationSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.samples = append(r.samples, &cp)
	return nil
}

func (r *fakeLocationRepo) LatestLocationSample(ctx context.Context, db *gorm.DB, tripID string) (*domain.LocationSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.LocationSample
	for _, s := range r.samples {
		if s.TripID != tripID {
			continue
		}
		if best == nil || s.RecordedAt.After(best.RecordedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeLocationRepo) PruneLocationSamples(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.samples[:0]
	var n int64
	for _, s := range r.samples {
		if s.RecordedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	r.samples = kept
	return n, nil
}

// ----- Collaborators -----

// fakeGateway records outbound messages. errs is a FIFO of per-call results:
// nil means success; when exhausted, calls succeed.
type fakeGateway struct {
	mu    sync.Mutex
	sends []fakeSend
	errs  []error
}

type fakeSend struct {
	To   string
	Body string
}

func (g *fakeGateway) Send(ctx context.Context, toE164, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	if len(g.errs) > 0 {
		err, g.errs = g.errs[0], g.errs[1:]
	}
	if err != nil {
		return "", err
	}
	g.sends = append(g.sends, fakeSend{To: toE164, Body: body})
	return "d-1", nil
}

func (g *fakeGateway) sent() []fakeSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]fakeSend(nil), g.sends...)
}

// fakeNotifier records dispatched alert IDs and signals on a channel so tests
// can wait for the asynchronous dispatch.
type fakeNotifier struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan string, 8)}
}

func (n *fakeNotifier) Notify(ctx context.Context, alertID string) (*DispatchResult, error) {
	n.mu.Lock()
	n.ids = append(n.ids, alertID)
	n.mu.Unlock()
	n.ch <- alertID
	return &DispatchResult{AlertID: alertID, NotifiedCount: 1}, nil
}

func (n *fakeNotifier) wait(timeout time.Duration) (string, bool) {
	select {
	case id := <-n.ch:
		return id, true
	case <-time.After(timeout):
		return "", false
	}
}

// fakeIdentity returns a scripted confirmation outcome.
type fakeIdentity struct {
	ok  bool
	err error

	gotOwner string
	gotProof string
}

func (f *fakeIdentity) Confirm(ctx context.Context, ownerID, proof string) (bool, error) {
	f.gotOwner, f.gotProof = ownerID, proof
	return f.ok, f.err
}

// fakeLimiter returns scripted decisions in order; when exhausted it allows.
type fakeLimiter struct {
	mu        sync.Mutex
	decisions []ratelimit.Decision
	keys      []string
}

func (f *fakeLimiter) Allow(key string, window time.Duration) ratelimit.Decision {
	return f.next(key)
}

func (f *fakeLimiter) AllowN(key string, window time.Duration, max int) ratelimit.Decision {
	return f.next(key)
}

func (f *fakeLimiter) next(key string) ratelimit.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if len(f.decisions) == 0 {
		return ratelimit.Decision{Allowed: true}
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d
}
