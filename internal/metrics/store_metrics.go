package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeNotFound   = "not_found"
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeCommitFail = "commit_failed"
)

// StoreMetrics holds the Prometheus collectors of the data-access layer.
// A nil *StoreMetrics is valid and records nothing.
type StoreMetrics struct {
	operationDuration *prometheus.HistogramVec
	transactions      *prometheus.CounterVec
	detailRows        prometheus.Counter
	events            *prometheus.CounterVec
	openTransactions  prometheus.Gauge
}

// NewStoreMetrics registers the collectors with the default registerer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer registers the collectors with registerer,
// reusing collectors that are already registered under the same name.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "salesorders_repository_operation_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation", "outcome"}),
		transactions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "salesorders_transactions_total",
			Help: "Total number of finished transaction scopes by outcome",
		}, []string{"outcome"}),
		detailRows: registerCounter(registerer, prometheus.CounterOpts{
			Name: "salesorders_order_detail_rows_written_total",
			Help: "Total number of OrderDetail rows inserted or updated in committed transactions",
		}),
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "salesorders_order_events_total",
			Help: "Total number of order events handed to the publisher by outcome",
		}, []string{"outcome"}),
		openTransactions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "salesorders_open_transactions",
			Help: "Number of transaction scopes currently open",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// ObserveOperation records how long a repository operation took.
func (m *StoreMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// TransactionStarted marks a transaction scope as open.
func (m *StoreMetrics) TransactionStarted() {
	if m == nil {
		return
	}
	m.openTransactions.Inc()
}

// TransactionFinished closes a transaction scope with the given outcome.
func (m *StoreMetrics) TransactionFinished(outcome string) {
	if m == nil {
		return
	}
	m.openTransactions.Dec()
	m.transactions.WithLabelValues(outcome).Inc()
}

// AddDetailRows counts OrderDetail rows written by a committed transaction.
func (m *StoreMetrics) AddDetailRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.detailRows.Add(float64(n))
}

// RecordEvent counts an order event publication attempt.
func (m *StoreMetrics) RecordEvent(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}
