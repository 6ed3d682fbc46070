package repo

import (
	"context"
	"testing"
	"time"

	"github.com/monjodav/prudency-backend/internal/domain"
)

func TestLatestUsableCode_FiltersAndOrders(t *testing.T) {
	db := newTestDB(t, &domain.VerificationCode{})
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	verified := now.Add(-5 * time.Minute)
	rows := []domain.VerificationCode{
		{ID: "expired", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-15 * time.Minute)},
		{ID: "used", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: now.Add(time.Minute), VerifiedAt: &verified, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "older", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now.Add(-8 * time.Minute)},
		{ID: "newest", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: now.Add(9 * time.Minute), CreatedAt: now.Add(-time.Minute)},
		{ID: "otherphone", OwnerID: "u1", Phone: "+2000", CodeHash: "h", ExpiresAt: now.Add(9 * time.Minute), CreatedAt: now},
	}
	for _, vc := range rows {
		vc := vc
		if err := db.Create(&vc).Error; err != nil {
			t.Fatalf("seed %s: %v", vc.ID, err)
		}
	}

	got, err := LatestUsableCode(ctx, db, "u1", "+1000", now)
	if err != nil {
		t.Fatalf("LatestUsableCode: %v", err)
	}
	if got.ID != "newest" {
		t.Fatalf("got %q; want newest", got.ID)
	}

	if _, err := LatestUsableCode(ctx, db, "u9", "+1000", now); err != ErrNotFound {
		t.Fatalf("unknown owner: err = %v; want ErrNotFound", err)
	}
}

func TestCountCodesIssuedSince(t *testing.T) {
	db := newTestDB(t, &domain.VerificationCode{})
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		vc := domain.VerificationCode{ID: id, OwnerID: "u1", Phone: "+1000", CodeHash: "h",
			ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now.Add(-time.Duration(i*4) * time.Minute)}
		if err := db.Create(&vc).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	n, err := CountCodesIssuedSince(ctx, db, "u1", "+1000", now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("CountCodesIssuedSince: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d; want 3", n)
	}

	n, _ = CountCodesIssuedSince(ctx, db, "u1", "+1000", now.Add(-5*time.Minute))
	if n != 2 {
		t.Fatalf("count = %d; want 2", n)
	}
}

func TestIncrementCodeAttempts_CountsBeforeComparison(t *testing.T) {
	db := newTestDB(t, &domain.VerificationCode{})
	ctx := context.Background()

	vc := domain.VerificationCode{ID: "v1", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: time.Now().UTC().Add(10 * time.Minute)}
	if err := CreateVerificationCode(ctx, db, &vc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := IncrementCodeAttempts(ctx, db, "v1")
	if err != nil || n != 1 {
		t.Fatalf("first increment = %d, %v; want 1", n, err)
	}
	n, err = IncrementCodeAttempts(ctx, db, "v1")
	if err != nil || n != 2 {
		t.Fatalf("second increment = %d, %v; want 2", n, err)
	}

	if _, err := IncrementCodeAttempts(ctx, db, "missing"); err != ErrNotFound {
		t.Fatalf("missing record: err = %v; want ErrNotFound", err)
	}
}

func TestMarkCodeVerified_NoDoubleUse(t *testing.T) {
	db := newTestDB(t, &domain.VerificationCode{})
	ctx := context.Background()

	vc := domain.VerificationCode{ID: "v1", OwnerID: "u1", Phone: "+1000", CodeHash: "h", ExpiresAt: time.Now().UTC().Add(10 * time.Minute)}
	if err := CreateVerificationCode(ctx, db, &vc); err != nil {
		t.Fatalf("seed: %v", err)
	}

	at := time.Now().UTC()
	if err := MarkCodeVerified(ctx, db, "v1", at); err != nil {
		t.Fatalf("MarkCodeVerified: %v", err)
	}
	if err := MarkCodeVerified(ctx, db, "v1", at.Add(time.Second)); err != ErrNotFound {
		t.Fatalf("double verify: err = %v; want ErrNotFound", err)
	}
}
