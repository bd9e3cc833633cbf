package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	loadResultHit     = "hit"
	loadResultMiss    = "miss"
	loadResultCorrupt = "corrupt"
	loadResultError   = "error"
)

// Metrics exposes Prometheus metrics for the session life cycle.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// LoadsTotal counts record loads, labeled by result:
	// "hit", "miss", "corrupt", "error".
	LoadsTotal *prometheus.CounterVec

	// CommitsTotal counts record writes, labeled by result: "ok", "error".
	CommitsTotal *prometheus.CounterVec

	// EstablishedTotal counts session cookies issued.
	EstablishedTotal prometheus.Counter

	// RejectedWritesTotal counts writes refused because the response had
	// already started.
	RejectedWritesTotal prometheus.Counter

	// RecordBytes observes the size of committed records.
	RecordBytes prometheus.Histogram
}

// NewMetrics creates session metrics and registers them with reg.
// If reg is nil, metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionstate",
			Subsystem: "sessions",
			Name:      "loads_total",
			Help:      "Total number of session record loads",
		}, []string{"result"}),
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessionstate",
			Subsystem: "sessions",
			Name:      "commits_total",
			Help:      "Total number of session record commits",
		}, []string{"result"}),
		EstablishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionstate",
			Subsystem: "sessions",
			Name:      "established_total",
			Help:      "Total number of session cookies issued",
		}),
		RejectedWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sessionstate",
			Subsystem: "sessions",
			Name:      "rejected_writes_total",
			Help:      "Total number of session writes after the response started",
		}),
		RecordBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sessionstate",
			Subsystem: "sessions",
			Name:      "record_bytes",
			Help:      "Size of committed session records in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10), // 16B to ~4MiB
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.LoadsTotal,
			m.CommitsTotal,
			m.EstablishedTotal,
			m.RejectedWritesTotal,
			m.RecordBytes,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				// Ignore AlreadyRegisteredError (manager rebuilt in the same process).
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *Metrics) recordLoad(result string) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordCommit(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommitsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeRecordSize(n int) {
	if m == nil {
		return
	}
	m.RecordBytes.Observe(float64(n))
}

func (m *Metrics) recordEstablished() {
	if m == nil {
		return
	}
	m.EstablishedTotal.Inc()
}

func (m *Metrics) recordRejected() {
	if m == nil {
		return
	}
	m.RejectedWritesTotal.Inc()
}
