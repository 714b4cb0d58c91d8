package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "r2k2"

// Result kinds for MatchesResolved.
const (
	KindScored   = "scored"
	KindWalkover = "walkover"
)

// Metrics holds the tournament counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	bracketsGenerated    prometheus.Counter
	matchesResolved      *prometheus.CounterVec
	tournamentsCompleted prometheus.Counter
	playersRegistered    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		bracketsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brackets_generated_total",
			Help:      "Brackets generated.",
		}),
		matchesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_resolved_total",
			Help:      "Matches resolved, by kind of result.",
		}, []string{"kind"}),
		tournamentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tournaments_completed_total",
			Help:      "Tournaments that crowned a champion.",
		}),
		playersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_registered_total",
			Help:      "Players registered into tournaments.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bracketsGenerated,
		m.matchesResolved,
		m.tournamentsCompleted,
		m.playersRegistered,
	)
	return m
}

func (m *Metrics) BracketGenerated() {
	if m == nil {
		return
	}
	m.bracketsGenerated.Inc()
}

func (m *Metrics) MatchResolved(kind string) {
	if m == nil {
		return
	}
	m.matchesResolved.WithLabelValues(kind).Inc()
}

func (m *Metrics) TournamentCompleted() {
	if m == nil {
		return
	}
	m.tournamentsCompleted.Inc()
}

func (m *Metrics) PlayerRegistered() {
	if m == nil {
		return
	}
	m.playersRegistered.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
