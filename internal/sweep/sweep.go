// Package sweep runs the server-side periodic jobs: the authoritative trip
// timeout sweep and the location-sample retention prune.
//
// The sweep itself carries no escalation logic. It lists overdue trips and
// calls the idempotent timeout check per trip; a failed run is logged and
// self-corrects on the next schedule, because the check re-evaluates current
// time against each deadline every time.
package sweep

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/monjodav/prudency-backend/internal/services"
)

// TripChecker is the slice of TripService the sweeper needs.
type TripChecker interface {
	OverdueTripIDs(ctx context.Context, limit int) ([]string, error)
	CheckTimeout(ctx context.Context, tripID string) (*services.TimeoutResult, error)
}

// LocationPruner deletes location samples older than the retention horizon.
type LocationPruner interface {
	PruneLocations(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Result summarizes one sweep run.
type Result struct {
	Checked   int      `json:"checked"`
	Triggered int      `json:"triggered"`
	AlertIDs  []string `json:"alert_ids,omitempty"`
	Errors    int      `json:"errors"`
}

// Sweeper owns the cron schedule and the per-run logic. RunOnce is also
// exposed directly for the internal HTTP trigger and for tests.
type Sweeper struct {
	Trips  TripChecker
	Pruner LocationPruner
	Log    zerolog.Logger

	// Schedule is the cron expression for the timeout sweep.
	Schedule string
	// PruneSchedule is the cron expression for the retention prune.
	PruneSchedule string
	// BatchSize bounds how many overdue trips one run processes.
	BatchSize int
	// Retention is how long raw location samples are kept.
	Retention time.Duration
	// RunTimeout bounds one sweep run.
	RunTimeout time.Duration

	// OnRun, when set, observes every run's outcome (metrics hook). err is
	// non-nil only when the run failed before checking any trip.
	OnRun func(res *Result, err error)

	c *cron.Cron
}

// New constructs a Sweeper with the default cadence: timeout sweep every
// minute, prune once a day, 200 trips per batch, 48h sample retention.
func New(trips TripChecker, pruner LocationPruner, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Trips:         trips,
		Pruner:        pruner,
		Log:           log,
		Schedule:      "@every 1m",
		PruneSchedule: "@daily",
		BatchSize:     200,
		Retention:     48 * time.Hour,
		RunTimeout:    time.Minute,
	}
}

// Start registers the jobs and starts the cron runner. Stop must be called
// on shutdown.
func (s *Sweeper) Start() error {
	s.c = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := s.c.AddFunc(s.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
		defer cancel()
		res, err := s.RunOnce(ctx)
		if err != nil {
			s.Log.Error().Err(err).Msg("timeout sweep failed")
			return
		}
		if res.Checked > 0 || res.Errors > 0 {
			s.Log.Info().
				Int("checked", res.Checked).
				Int("triggered", res.Triggered).
				Int("errors", res.Errors).
				Msg("timeout sweep finished")
		}
	}); err != nil {
		return err
	}
	if s.Pruner != nil {
		if _, err := s.c.AddFunc(s.PruneSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.RunTimeout)
			defer cancel()
			n, err := s.Pruner.PruneLocations(ctx, s.Retention)
			if err != nil {
				s.Log.Error().Err(err).Msg("location prune failed")
				return
			}
			s.Log.Info().Int64("pruned", n).Msg("location samples pruned")
		}); err != nil {
			return err
		}
	}
	s.c.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Sweeper) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

// RunOnce executes one timeout sweep: list overdue active trips, run the
// idempotent check on each. Per-trip failures are counted and logged, never
// fatal to the run; the next schedule retries them.
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	ids, err := s.Trips.OverdueTripIDs(ctx, s.BatchSize)
	if err != nil {
		if s.OnRun != nil {
			s.OnRun(nil, err)
		}
		return nil, err
	}

	res := &Result{Checked: len(ids)}
	for _, id := range ids {
		tr, err := s.Trips.CheckTimeout(ctx, id)
		if err != nil {
			res.Errors++
			s.Log.Warn().Err(err).Str("trip_id", id).Msg("timeout check failed")
			continue
		}
		if tr.Triggered {
			res.Triggered++
			res.AlertIDs = append(res.AlertIDs, tr.AlertID)
		}
	}
	if s.OnRun != nil {
		s.OnRun(res, nil)
	}
	return res, nil
}
