package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Ledger agrupa os coletores do ledger-service num registry próprio
type Ledger struct {
	Registry *prometheus.Registry

	WagersPlaced       prometheus.Counter
	WagersRejected     *prometheus.CounterVec // reason
	WagersCancelled    prometheus.Counter
	WagersSettled      *prometheus.CounterVec // status
	SettlementFailures prometheus.Counter
	SettlementDuration prometheus.Histogram
	PlacementLatency   prometheus.Histogram
	FanoutDropped      *prometheus.CounterVec // scope
	FanoutSessions     prometheus.Gauge
	JournalErrors      prometheus.Counter
	IntakeMessages     *prometheus.CounterVec // topic, result
}

func NewLedger(namespace string) *Ledger {
	m := &Ledger{
		Registry: prometheus.NewRegistry(),
		WagersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_placed_total", Help: "Wagers accepted.",
		}),
		WagersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_rejected_total", Help: "Wager placements rejected by reason.",
		}, []string{"reason"}),
		WagersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_cancelled_total", Help: "Wagers cancelled by their owner.",
		}),
		WagersSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wagers_settled_total", Help: "Wagers moved to a terminal state by settlement.",
		}, []string{"status"}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "settlement_failures_total", Help: "Wagers left pending after a failed settlement step.",
		}),
		SettlementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "settlement_duration_seconds", Help: "Time to settle one event.",
			Buckets: prometheus.DefBuckets,
		}),
		PlacementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "placement_latency_seconds", Help: "Wager placement latency.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		FanoutDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fanout_dropped_total", Help: "Messages dropped on full session buffers.",
		}, []string{"scope"}),
		FanoutSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fanout_sessions", Help: "Connected push sessions.",
		}),
		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "journal_write_errors_total", Help: "Failed journal writes (retried).",
		}),
		IntakeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "intake_messages_total", Help: "Kafka intake messages by topic and result.",
		}, []string{"topic", "result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.WagersPlaced, m.WagersRejected, m.WagersCancelled, m.WagersSettled,
		m.SettlementFailures, m.SettlementDuration, m.PlacementLatency,
		m.FanoutDropped, m.FanoutSessions, m.JournalErrors, m.IntakeMessages,
	)
	return m
}
