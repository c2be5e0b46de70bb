package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Metrics struct {
	LoginAttemptsRecorded *prometheus.CounterVec
	LoginBlockedTotal     prometheus.Counter
	LoginGuardErrors      *prometheus.CounterVec
	BlockCacheLookups     *prometheus.CounterVec
	CleanupDeletedTotal   prometheus.Counter
	CleanupRunsTotal      *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in main
// and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginAttemptsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_tracker_login_attempts_recorded_total",
			Help: "Total number of login attempts written to the attempt log",
		}, []string{"outcome"}),
		LoginBlockedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "expense_tracker_login_blocked_total",
			Help: "Total number of login requests rejected because the account was blocked",
		}),
		LoginGuardErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_tracker_login_guard_errors_total",
			Help: "Total number of attempt store failures seen by the login guard",
		}, []string{"operation"}),
		BlockCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_tracker_block_cache_lookups_total",
			Help: "Block cache lookups by result",
		}, []string{"result"}),
		CleanupDeletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "expense_tracker_attempt_cleanup_deleted_total",
			Help: "Total number of login attempts pruned by the retention worker",
		}),
		CleanupRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "expense_tracker_attempt_cleanup_runs_total",
			Help: "Total number of retention runs",
		}, []string{"status"}),
	}
}

// All helpers are nil-safe so components can run without metrics wired.

func (m *Metrics) IncrementAttemptsRecorded(success bool) {
	if m == nil {
		return
	}
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	m.LoginAttemptsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementBlocked() {
	if m == nil {
		return
	}
	m.LoginBlockedTotal.Inc()
}

func (m *Metrics) IncrementGuardErrors(operation string) {
	if m == nil {
		return
	}
	m.LoginGuardErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.BlockCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddCleanupDeleted(count int64) {
	if m == nil {
		return
	}
	m.CleanupDeletedTotal.Add(float64(count))
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	if m == nil {
		return
	}
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}
