package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/monjodav/prudency-backend/internal/services"
)

type fakeChecker struct {
	overdue    []string
	overdueErr error

	results map[string]*services.TimeoutResult
	errs    map[string]error

	checked []string
}

func (f *fakeChecker) OverdueTripIDs(ctx context.Context, limit int) ([]string, error) {
	if f.overdueErr != nil {
		return nil, f.overdueErr
	}
	if limit > 0 && len(f.overdue) > limit {
		return f.overdue[:limit], nil
	}
	return f.overdue, nil
}

func (f *fakeChecker) CheckTimeout(ctx context.Context, tripID string) (*services.TimeoutResult, error) {
	f.checked = append(f.checked, tripID)
	if err, ok := f.errs[tripID]; ok {
		return nil, err
	}
	if r, ok := f.results[tripID]; ok {
		return r, nil
	}
	return &services.TimeoutResult{Triggered: false, Status: "active"}, nil
}

type fakePruner struct {
	gotOlderThan time.Duration
	n            int64
	err          error
}

func (f *fakePruner) PruneLocations(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.gotOlderThan = olderThan
	return f.n, f.err
}

func TestRunOnce_ChecksEveryOverdueTrip(t *testing.T) {
	checker := &fakeChecker{
		overdue: []string{"t1", "t2", "t3"},
		results: map[string]*services.TimeoutResult{
			"t1": {Triggered: true, Status: "timeout", AlertID: "a1"},
			"t2": {Triggered: false, Status: "completed"},
			"t3": {Triggered: true, Status: "timeout", AlertID: "a3"},
		},
	}
	s := New(checker, nil, zerolog.Nop())

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Checked != 3 || res.Triggered != 2 || res.Errors != 0 {
		t.Fatalf("result = %+v; want 3 checked, 2 triggered", res)
	}
	if len(res.AlertIDs) != 2 || res.AlertIDs[0] != "a1" || res.AlertIDs[1] != "a3" {
		t.Fatalf("alert ids = %v", res.AlertIDs)
	}
	if len(checker.checked) != 3 {
		t.Fatalf("checked = %v", checker.checked)
	}
}

func TestRunOnce_PerTripFailureIsCountedNotFatal(t *testing.T) {
	checker := &fakeChecker{
		overdue: []string{"t1", "t2"},
		errs:    map[string]error{"t1": errors.New("db hiccup")},
		results: map[string]*services.TimeoutResult{
			"t2": {Triggered: true, Status: "timeout", AlertID: "a2"},
		},
	}
	s := New(checker, nil, zerolog.Nop())

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Errors != 1 || res.Triggered != 1 {
		t.Fatalf("result = %+v; want 1 error, 1 triggered", res)
	}
	// t2 must still have been checked after t1 failed.
	if len(checker.checked) != 2 {
		t.Fatalf("checked = %v; want both trips", checker.checked)
	}
}

func TestRunOnce_ListFailureIsFatalForTheRun(t *testing.T) {
	checker := &fakeChecker{overdueErr: errors.New("db down")}
	s := New(checker, nil, zerolog.Nop())

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected the listing error to surface")
	}
}

func TestRunOnce_RespectsBatchSize(t *testing.T) {
	checker := &fakeChecker{overdue: []string{"t1", "t2", "t3", "t4"}}
	s := New(checker, nil, zerolog.Nop())
	s.BatchSize = 2

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Checked != 2 {
		t.Fatalf("checked = %d; want 2", res.Checked)
	}
}

func TestStartStop_SchedulesJobs(t *testing.T) {
	checker := &fakeChecker{}
	pruner := &fakePruner{}
	s := New(checker, pruner, zerolog.Nop())

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(s.c.Entries()); got != 2 {
		t.Fatalf("entries = %d; want sweep + prune", got)
	}
	s.Stop()
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := New(&fakeChecker{}, nil, zerolog.Nop())
	s.Schedule = "not a schedule"
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule parse error")
	}
}
