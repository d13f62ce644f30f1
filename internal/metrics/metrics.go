// Package metrics exposes game and shard counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

const namespace = "connect4"

type Metrics struct {
	ActiveRooms      prometheus.Gauge
	OnlinePlayers    prometheus.Gauge
	GamesStarted     prometheus.Counter
	GamesFinished    *prometheus.CounterVec
	MovesApplied     prometheus.Counter
	PowerUpsUsed     *prometheus.CounterVec
	EventsStarted    *prometheus.CounterVec
	TurnTimeouts     prometheus.Counter
	ShardFailures    *prometheus.CounterVec
	MessagesReceived prometheus.Counter

	gatherer prometheus.Gatherer
}

// New builds the collectors and registers them on reg. Passing nil uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms held by the coordinator",
		}),
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of open websocket connections",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Total number of games started",
		}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Total number of finished games by outcome",
		}, []string{"win_type"}),
		MovesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_applied_total",
			Help:      "Total number of discs dropped by regular moves",
		}),
		PowerUpsUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "power_ups_used_total",
			Help:      "Total number of power-ups resolved",
		}, []string{"kind"}),
		EventsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "random_events_total",
			Help:      "Total number of random events injected",
		}, []string{"kind"}),
		TurnTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_timeouts_total",
			Help:      "Total number of turns skipped by the timer",
		}),
		ShardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shard_failures_total",
			Help:      "Shard calls that failed after all retries",
		}, []string{"column"}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of websocket messages received",
		}),
		gatherer: prometheus.DefaultGatherer,
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	reg.MustRegister(
		m.ActiveRooms,
		m.OnlinePlayers,
		m.GamesStarted,
		m.GamesFinished,
		m.MovesApplied,
		m.PowerUpsUsed,
		m.EventsStarted,
		m.TurnTimeouts,
		m.ShardFailures,
		m.MessagesReceived,
	)
	return m
}

// Handler serves the registry the collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomOpened() { m.ActiveRooms.Inc() }
func (m *Metrics) RoomClosed() { m.ActiveRooms.Dec() }

func (m *Metrics) GameStarted() { m.GamesStarted.Inc() }

func (m *Metrics) GameFinished(winType domain.WinType) {
	m.GamesFinished.WithLabelValues(string(winType)).Inc()
}

func (m *Metrics) MoveApplied() { m.MovesApplied.Inc() }

func (m *Metrics) PowerUpUsed(kind domain.PowerUpKind) {
	m.PowerUpsUsed.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) EventStarted(kind domain.EventKind) {
	m.EventsStarted.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) TurnTimedOut() { m.TurnTimeouts.Inc() }

func (m *Metrics) ShardFailed(column int) {
	m.ShardFailures.WithLabelValues(strconv.Itoa(column)).Inc()
}

func (m *Metrics) ConnectionOpened() { m.OnlinePlayers.Inc() }
func (m *Metrics) ConnectionClosed() { m.OnlinePlayers.Dec() }

func (m *Metrics) MessageReceived() { m.MessagesReceived.Inc() }
