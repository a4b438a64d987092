// Package metrics exposes Prometheus collectors for the chat world engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LLM call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics bundles the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	MessagesReceived  *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	LLMCalls          *prometheus.CounterVec
	LLMLatency        *prometheus.HistogramVec
	TurnLimitHits     *prometheus.CounterVec
	PassHandoffs      *prometheus.CounterVec
	ReplicatedEntries *prometheus.CounterVec
}

// New registers the collectors on reg. Passing nil registers on the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f := promauto.With(reg)

	return &Metrics{
		MessagesReceived: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_messages_received_total",
				Help: "Total inbound messages",
			},
			[]string{"world", "sender_kind"}, // "human", "system" or "agent"
		),
		MessagesPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_events_published_total",
				Help: "Total events published",
			},
			[]string{"world", "type"},
		),
		LLMCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_llm_calls_total",
				Help: "Total LLM calls by outcome",
			},
			[]string{"world", "agent", "outcome"},
		),
		LLMLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentworld_llm_latency_seconds",
				Help:    "LLM call latency",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"world", "agent"},
		),
		TurnLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_turn_limit_redirects_total",
				Help: "Total turn limit redirects",
			},
			[]string{"world", "agent"},
		),
		PassHandoffs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_pass_handoffs_total",
				Help: "Total pass-control handoffs",
			},
			[]string{"world", "agent"},
		),
		ReplicatedEntries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentworld_replicated_entries_total",
				Help: "Total memory entries written by replication",
			},
			[]string{"world"},
		),
	}
}

// SenderKind classifies a sender for the received counter.
func SenderKind(human, system bool) string {
	switch {
	case human:
		return "human"
	case system:
		return "system"
	default:
		return "agent"
	}
}

// ObserveReceived counts an inbound message.
func (m *Metrics) ObserveReceived(world, kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(world, kind).Inc()
}

// ObservePublished counts a published event.
func (m *Metrics) ObservePublished(world, eventType string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(world, eventType).Inc()
}

// ObserveLLMCall records one LLM call.
func (m *Metrics) ObserveLLMCall(world, agent, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(world, agent, outcome).Inc()
	m.LLMLatency.WithLabelValues(world, agent).Observe(dur.Seconds())
}

// ObserveTurnLimit counts a turn limit redirect.
func (m *Metrics) ObserveTurnLimit(world, agent string) {
	if m == nil {
		return
	}
	m.TurnLimitHits.WithLabelValues(world, agent).Inc()
}

// ObservePass counts a pass-control handoff.
func (m *Metrics) ObservePass(world, agent string) {
	if m == nil {
		return
	}
	m.PassHandoffs.WithLabelValues(world, agent).Inc()
}

// ObserveReplicated adds n replicated entries.
func (m *Metrics) ObserveReplicated(world string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReplicatedEntries.WithLabelValues(world).Add(float64(n))
}
