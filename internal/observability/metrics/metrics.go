// Package metrics exposes application-level prometheus instruments for
// the authenticated-transaction layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	transactions       *prometheus.CounterVec
	eventsInserted     prometheus.Counter
	ledgerCommands     prometheus.Counter
	cacheInvalidations *prometheus.CounterVec
	reconciliation     *prometheus.CounterVec
}

// New registers the instruments on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_authenticated_transactions_total",
			Help: "Authenticated transactions by outcome.",
		}, []string{"outcome"}),
		eventsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerline_events_inserted_total",
			Help: "Domain events durably inserted (duplicates excluded).",
		}),
		ledgerCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgerline_ledger_commands_total",
			Help: "Ledger commands processed inside committed transactions.",
		}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_cache_invalidations_total",
			Help: "Post-commit cache invalidations by outcome.",
		}, []string{"outcome"}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerline_pricing_reconciliation_entities_total",
			Help: "Pricing-model reconciliation row operations by kind.",
		}, []string{"kind", "op"}),
	}

	for _, c := range []prometheus.Collector{
		m.transactions, m.eventsInserted, m.ledgerCommands, m.cacheInvalidations, m.reconciliation,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNop returns instruments bound to a throwaway registry for tests.
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}

func (m *Metrics) RecordTransaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordEventsInserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsInserted.Add(float64(n))
}

func (m *Metrics) RecordLedgerCommand() {
	if m == nil {
		return
	}
	m.ledgerCommands.Inc()
}

func (m *Metrics) RecordCacheInvalidation(outcome string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReconciliation(kind, op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciliation.WithLabelValues(kind, op).Add(float64(n))
}

// Module wires the default registerer and the domain instruments.
var Module = fx.Module("observability.metrics",
	fx.Provide(
		func() prometheus.Registerer { return prometheus.DefaultRegisterer },
		New,
	),
)
