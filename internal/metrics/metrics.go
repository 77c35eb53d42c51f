// Package metrics holds the Prometheus collectors for the dashboard engine.
// A single Metrics value is constructed at startup and passed to every
// component that records anything; a nil Metrics disables recording, which
// keeps tests free of registry setup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	sessionReconnects  prometheus.Counter
	sessionStatus      *prometheus.GaugeVec
	requestsTotal      *prometheus.CounterVec
	eventsDropped      prometheus.Counter
	ledgersClosed      prometheus.Counter
	staleLedgerEvents  prometheus.Counter
	transactionsTotal  *prometheus.CounterVec
	walletsCreated     *prometheus.CounterVec
	snapshotVersion    prometheus.Gauge
	unknownEventsTotal *prometheus.CounterVec
}

// New creates a Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		sessionReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "xrpltop_session_reconnects_total",
			Help: "Number of websocket reconnection attempts",
		}),
		sessionStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpltop_session_status",
			Help: "Current connection status (1 for the active status)",
		}, []string{"status"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrpltop_requests_total",
			Help: "Websocket requests by method and outcome",
		}, []string{"method", "status"}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "xrpltop_events_dropped_total",
			Help: "Server push events dropped because the event queue was full",
		}),
		ledgersClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "xrpltop_ledgers_closed_total",
			Help: "Accepted ledger close events",
		}),
		staleLedgerEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "xrpltop_stale_ledger_events_total",
			Help: "Ledger close events discarded as duplicate or out of order",
		}),
		transactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrpltop_transactions_total",
			Help: "Tracked transactions by terminal status",
		}, []string{"status"}),
		walletsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrpltop_wallets_created_total",
			Help: "Wallets registered by provenance",
		}, []string{"source"}),
		snapshotVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xrpltop_snapshot_version",
			Help: "Version of the most recently published state snapshot",
		}),
		unknownEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrpltop_unknown_events_total",
			Help: "Events discarded because they match no tracked entity",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionReconnect() {
	if m == nil {
		return
	}
	m.sessionReconnects.Inc()
}

func (m *Metrics) SessionStatus(status string) {
	if m == nil {
		return
	}
	m.sessionStatus.Reset()
	m.sessionStatus.WithLabelValues(status).Set(1)
}

func (m *Metrics) Request(method, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, status).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) LedgerClosed() {
	if m == nil {
		return
	}
	m.ledgersClosed.Inc()
}

func (m *Metrics) StaleLedgerEvent() {
	if m == nil {
		return
	}
	m.staleLedgerEvents.Inc()
}

func (m *Metrics) TransactionStatus(status string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) WalletCreated(source string) {
	if m == nil {
		return
	}
	m.walletsCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) SnapshotVersion(version uint64) {
	if m == nil {
		return
	}
	m.snapshotVersion.Set(float64(version))
}

func (m *Metrics) UnknownEvent(kind string) {
	if m == nil {
		return
	}
	m.unknownEventsTotal.WithLabelValues(kind).Inc()
}
