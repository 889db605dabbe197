package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the ledger's Prometheus collectors. Gauges mirror WAD values
// as floats for dashboards only; nothing reads them back.
type Metrics struct {
	UBIClaims           prometheus.Counter
	ConversionsRequest  prometheus.Counter
	ConversionsClaimed  prometheus.Counter
	OperationFailures   *prometheus.CounterVec
	InvariantViolations *prometheus.CounterVec
	RateIndexValue      *prometheus.GaugeVec
	DecayRate           *prometheus.GaugeVec
	RateIndexCacheHits  prometheus.Counter
	RateIndexCacheMiss  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		UBIClaims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twubi_ubi_claims_total",
			Help: "Total number of successful UBI claims",
		}),
		ConversionsRequest: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twubi_conversions_requested_total",
			Help: "Total number of accepted conversion requests",
		}),
		ConversionsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twubi_conversions_claimed_total",
			Help: "Total number of claimed conversions",
		}),
		OperationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twubi_operation_failures_total",
			Help: "Ledger operation failures by operation and error kind",
		}, []string{"operation", "kind"}),
		InvariantViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twubi_invariant_violations_total",
			Help: "Invariant violations surfaced by ledger operations",
		}, []string{"kind"}),
		RateIndexValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twubi_rate_index_value",
			Help: "Last rolled rate index per region, as a fraction of 1.0",
		}, []string{"region"}),
		DecayRate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twubi_decay_rate",
			Help: "Current per-epoch decay rate per region, as a fraction of 1.0",
		}, []string{"region"}),
		RateIndexCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twubi_rate_index_cache_hits_total",
			Help: "Rate index reads served from cache",
		}),
		RateIndexCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twubi_rate_index_cache_misses_total",
			Help: "Rate index reads that went to the store",
		}),
	}
}

func (m *Metrics) IncrementUBIClaims() {
	m.UBIClaims.Inc()
}

func (m *Metrics) IncrementConversionsRequested() {
	m.ConversionsRequest.Inc()
}

func (m *Metrics) IncrementConversionsClaimed() {
	m.ConversionsClaimed.Inc()
}

func (m *Metrics) IncrementFailure(operation, kind string) {
	m.OperationFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) IncrementInvariantViolation(kind string) {
	m.InvariantViolations.WithLabelValues(kind).Inc()
}

// ObserveRateIndex records value and decay as fractions of 1.0.
func (m *Metrics) ObserveRateIndex(region int64, value, decay float64) {
	label := strconv.FormatInt(region, 10)
	m.RateIndexValue.WithLabelValues(label).Set(value)
	m.DecayRate.WithLabelValues(label).Set(decay)
}

func (m *Metrics) IncrementCacheHit() {
	m.RateIndexCacheHits.Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	m.RateIndexCacheMiss.Inc()
}
