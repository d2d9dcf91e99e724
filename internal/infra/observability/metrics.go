package observability

import (
	"time"

	"github.com/fintrack/vault-api-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the vault API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	entriesCreated  *prometheus.CounterVec
	coinsAwarded    prometheus.Counter
	syncOnline      prometheus.Gauge
	pendingWrites   prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		entriesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_entries_total",
				Help: "Total transactions recorded, by type.",
			},
			[]string{"type"},
		),
		coinsAwarded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_coins_awarded_total",
				Help: "Total reward coins handed out.",
			},
		),
		syncOnline: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_sync_online",
				Help: "1 when the remote store is reachable, 0 when serving from the local mirror.",
			},
		),
		pendingWrites: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vault_sync_pending_writes",
				Help: "Writes queued locally awaiting remote replay.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordEntry records one created transaction and its coin award.
func (m *Metrics) RecordEntry(txType string, coins int) {
	m.entriesCreated.WithLabelValues(txType).Inc()
	m.coinsAwarded.Add(float64(coins))
}

// SetSyncOnline flips the connectivity gauge.
func (m *Metrics) SetSyncOnline(online bool) {
	if online {
		m.syncOnline.Set(1)
	} else {
		m.syncOnline.Set(0)
	}
}

// SetPendingWrites reports the local write-behind queue depth.
func (m *Metrics) SetPendingWrites(n int) {
	m.pendingWrites.Set(float64(n))
}

// RemoteErrorCount returns the cumulative supabase error count, used by
// the sync status endpoint.
func (m *Metrics) RemoteErrorCount() int64 {
	return int64(getCounterValue(m.externalErrors, "supabase"))
}

// EntrySnapshot aggregates entry counters per transaction type for the
// ops summary endpoint.
func (m *Metrics) EntrySnapshot() map[string]int64 {
	out := make(map[string]int64, 5)
	for _, t := range []domain.TransactionType{
		domain.TypeIncome, domain.TypeExpense, domain.TypeCredit, domain.TypeDebt, domain.TypeSaving,
	} {
		out[string(t)] = int64(getCounterValue(m.entriesCreated, string(t)))
	}
	return out
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
