package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/sms"
)

func newInviteFixture(t *testing.T) (*InviteService, *fakeContactRepo, *fakeGateway) {
	t.Helper()
	repo := newFakeContactRepo(domain.TrustedContact{
		ID: "c1", OwnerID: "u1", Name: "Maria", Phone: "+33611111111", NotifyBySMS: true,
	})
	gw := &fakeGateway{}
	s := NewInviteService(nil, repo, gw, "https://prudency.app/i/")
	return s, repo, gw
}

func TestSendInvitation_OwnershipEnforced(t *testing.T) {
	s, _, _ := newInviteFixture(t)
	ctx := context.Background()

	if _, err := s.Send(ctx, "intruder", "c1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign caller err = %v; want ErrForbidden", err)
	}
	if _, err := s.Send(ctx, "u1", "ghost"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("missing contact err = %v; want ErrContactNotFound", err)
	}
}

func TestSendInvitation_FirstSend(t *testing.T) {
	s, repo, gw := newInviteFixture(t)

	c, err := s.Send(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c.InvitationCount != 1 || c.InvitationToken == nil || c.InvitationSentAt == nil {
		t.Fatalf("contact after send = %+v", c)
	}

	sent := gw.sent()
	if len(sent) != 1 || sent[0].To != "+33611111111" {
		t.Fatalf("sends = %v", sent)
	}
	if !strings.Contains(sent[0].Body, "https://prudency.app/i/"+*c.InvitationToken) {
		t.Fatalf("body %q missing accept link", sent[0].Body)
	}

	stored, _ := repo.GetContact(context.Background(), nil, "c1")
	if stored.InvitationCount != 1 {
		t.Fatalf("persisted count = %d; want 1", stored.InvitationCount)
	}
}

func TestSendInvitation_TokenReusedAcrossResends(t *testing.T) {
	s, _, _ := newInviteFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return t0 }
	first, err := s.Send(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}

	s.now = func() time.Time { return t0.Add(3 * time.Minute) }
	second, err := s.Send(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if *second.InvitationToken != *first.InvitationToken {
		t.Fatal("resend must reuse the token, not rotate it")
	}
	if second.InvitationCount != 2 {
		t.Fatalf("count = %d; want 2", second.InvitationCount)
	}
}

func TestSendInvitation_EscalatingCooldowns(t *testing.T) {
	s, _, _ := newInviteFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return t0 }
	if _, err := s.Send(ctx, "u1", "c1"); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// 90s < 120s cooldown before the second send.
	s.now = func() time.Time { return t0.Add(90 * time.Second) }
	_, err := s.Send(ctx, "u1", "c1")
	var ts *TooSoonError
	if !errors.As(err, &ts) {
		t.Fatalf("early resend err = %v; want TooSoonError", err)
	}
	if ts.Wait != 30*time.Second {
		t.Fatalf("remaining wait = %v; want 30s", ts.Wait)
	}

	s.now = func() time.Time { return t0.Add(2 * time.Minute) }
	if _, err := s.Send(ctx, "u1", "c1"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	// 30min < 60min cooldown before the third send.
	s.now = func() time.Time { return t0.Add(32 * time.Minute) }
	if _, err := s.Send(ctx, "u1", "c1"); !errors.As(err, &ts) {
		t.Fatalf("early third send err = %v; want TooSoonError", err)
	}

	s.now = func() time.Time { return t0.Add(2*time.Minute + time.Hour) }
	if _, err := s.Send(ctx, "u1", "c1"); err != nil {
		t.Fatalf("third send: %v", err)
	}

	// Budget exhausted.
	s.now = func() time.Time { return t0.Add(48 * time.Hour) }
	if _, err := s.Send(ctx, "u1", "c1"); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("fourth send err = %v; want ErrLimitReached", err)
	}
}

func TestSendInvitation_SendFailureLeavesCountersUntouched(t *testing.T) {
	s, repo, gw := newInviteFixture(t)
	gw.errs = []error{&sms.TransientError{Err: errors.New("gateway down")}}

	_, err := s.Send(context.Background(), "u1", "c1")
	if !sms.IsTransient(err) {
		t.Fatalf("err = %v; want gateway error surfaced", err)
	}

	stored, _ := repo.GetContact(context.Background(), nil, "c1")
	if stored.InvitationCount != 0 || stored.InvitationToken != nil || stored.InvitationSentAt != nil {
		t.Fatalf("failed send mutated the contact: %+v", stored)
	}
}

func TestAcceptInvitation_RoundTrip(t *testing.T) {
	s, repo, _ := newInviteFixture(t)
	ctx := context.Background()

	sent, err := s.Send(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	token := *sent.InvitationToken

	accepted, err := s.Accept(ctx, token)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.ID != "c1" || !accepted.InvitationAccepted {
		t.Fatalf("accepted = %+v", accepted)
	}

	stored, _ := repo.GetContact(ctx, nil, "c1")
	if stored.InvitationToken != nil {
		t.Fatal("token must be burned on acceptance")
	}

	// The burned token cannot be replayed.
	if _, err := s.Accept(ctx, token); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("replay err = %v; want ErrInvitationNotFound", err)
	}
}

func TestAcceptInvitation_UnknownToken(t *testing.T) {
	s, _, _ := newInviteFixture(t)
	for _, token := range []string{"", "nope"} {
		if _, err := s.Accept(context.Background(), token); !errors.Is(err, ErrInvitationNotFound) {
			t.Errorf("token %q: err = %v; want ErrInvitationNotFound", token, err)
		}
	}
}

func TestSendInvitation_AcceptedContactIsNoop(t *testing.T) {
	s, _, gw := newInviteFixture(t)
	ctx := context.Background()

	sent, err := s.Send(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := s.Accept(ctx, *sent.InvitationToken); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	before := len(gw.sent())
	c, err := s.Send(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("post-accept send: %v", err)
	}
	if !c.InvitationAccepted {
		t.Fatal("contact should read accepted")
	}
	if len(gw.sent()) != before {
		t.Fatal("no SMS should go out for an already-accepted invitation")
	}
}
