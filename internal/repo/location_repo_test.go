package repo

import (
	"context"
	"testing"
	"time"

	"github.com/monjodav/prudency-backend/internal/domain"
)

func TestLatestLocationSample(t *testing.T) {
	db := newTestDB(t, &domain.LocationSample{})
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := LatestLocationSample(ctx, db, "t1"); err != ErrNotFound {
		t.Fatalf("empty trip: err = %v; want ErrNotFound", err)
	}

	for i, id := range []string{"s1", "s2", "s3"} {
		s := domain.LocationSample{ID: id, TripID: "t1", Lat: 48.85 + float64(i)*0.001, Lng: 2.35, RecordedAt: base.Add(time.Duration(i) * 5 * time.Second)}
		if err := CreateLocationSample(ctx, db, &s); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	other := domain.LocationSample{ID: "sx", TripID: "t2", Lat: 0, Lng: 0, RecordedAt: base.Add(time.Hour)}
	if err := CreateLocationSample(ctx, db, &other); err != nil {
		t.Fatalf("seed sx: %v", err)
	}

	got, err := LatestLocationSample(ctx, db, "t1")
	if err != nil {
		t.Fatalf("LatestLocationSample: %v", err)
	}
	if got.ID != "s3" {
		t.Fatalf("got %q; want s3", got.ID)
	}
}

func TestPruneLocationSamples(t *testing.T) {
	db := newTestDB(t, &domain.LocationSample{})
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	old := domain.LocationSample{ID: "old", TripID: "t1", RecordedAt: base.Add(-48 * time.Hour)}
	fresh := domain.LocationSample{ID: "fresh", TripID: "t1", RecordedAt: base}
	for _, s := range []domain.LocationSample{old, fresh} {
		s := s
		if err := CreateLocationSample(ctx, db, &s); err != nil {
			t.Fatalf("seed %s: %v", s.ID, err)
		}
	}

	n, err := PruneLocationSamples(ctx, db, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneLocationSamples: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d; want 1", n)
	}
	if _, err := LatestLocationSample(ctx, db, "t1"); err != nil {
		t.Fatalf("fresh sample must survive: %v", err)
	}
}
