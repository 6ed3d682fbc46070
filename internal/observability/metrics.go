// Domain Prometheus metrics.
//
// The HTTP middleware already measures generic request traffic; the
// collectors here count the pipeline's own events: alerts entering the
// system, SMS deliveries leaving it, and sweep runs in between. Label sets
// are fixed enumerations, so cardinality stays bounded.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/monjodav/prudency-backend/internal/sms"
)

var (
	// alertsCreated counts alerts by type (manual, automatic, timeout).
	alertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prudency_alerts_created_total",
			Help: "Total number of alerts created, by type.",
		},
		[]string{"type"},
	)

	// smsDeliveries counts SMS attempts by terminal outcome.
	smsDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prudency_sms_deliveries_total",
			Help: "Total number of SMS delivery attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	// sweepRuns counts timeout sweep executions by result.
	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prudency_sweep_runs_total",
			Help: "Total number of timeout sweep runs, by result.",
		},
		[]string{"result"},
	)

	// sweepTriggered counts trips escalated to timeout by the sweep.
	sweepTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prudency_sweep_timeouts_total",
			Help: "Total number of trips escalated to timeout by the sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(alertsCreated, smsDeliveries, sweepRuns, sweepTriggered)
}

// AlertCreated records one created alert of the given type.
func AlertCreated(alertType string) {
	alertsCreated.WithLabelValues(alertType).Inc()
}

// SweepRan records one sweep run and the number of trips it escalated.
// failed marks runs that could not even list overdue trips.
func SweepRan(triggered int, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	sweepRuns.WithLabelValues(result).Inc()
	if triggered > 0 {
		sweepTriggered.Add(float64(triggered))
	}
}

// MeteredGateway decorates an sms.Gateway with delivery counters. Outcomes:
// "delivered", "invalid_recipient" (terminal provider rejection), and
// "failed" (transient or unknown errors after the caller's retries).
type MeteredGateway struct {
	Next sms.Gateway
}

// Send forwards to the wrapped gateway and records the outcome.
func (g MeteredGateway) Send(ctx context.Context, to, body string) (string, error) {
	id, err := g.Next.Send(ctx, to, body)
	switch {
	case err == nil:
		smsDeliveries.WithLabelValues("delivered").Inc()
	case sms.IsTransient(err):
		smsDeliveries.WithLabelValues("failed").Inc()
	default:
		smsDeliveries.WithLabelValues("invalid_recipient").Inc()
	}
	return id, err
}
