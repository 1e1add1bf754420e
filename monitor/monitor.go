// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers  prometheus.Gauge
	QueuedRanked   prometheus.Gauge
	QueuedCasual   prometheus.Gauge
	ActiveRooms    prometheus.Gauge
	MatchesStarted *prometheus.CounterVec
	BotMatches     prometheus.Counter
	RoundsResolved prometheus.Counter
	Forfeits       prometheus.Counter
	RoundSeconds   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		QueuedRanked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_ranked_players",
			Help:      "Players waiting in the ranked queue",
		}),
		QueuedCasual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_casual_players",
			Help:      "Players waiting in the casual queue",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active duels",
		}),
		MatchesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Total matches started, by mode",
		}, []string{"mode"}),
		BotMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_matches_total",
			Help:      "Matches started against a synthetic opponent",
		}),
		RoundsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Total rounds resolved",
		}),
		Forfeits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forfeits_total",
			Help:      "Matches ended by disconnect forfeit",
		}),
		RoundSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from round start to resolution",
			Buckets:   prometheus.LinearBuckets(2.5, 2.5, 12),
		}),
	}

	prometheus.MustRegister(
		m.OnlinePlayers,
		m.QueuedRanked,
		m.QueuedCasual,
		m.ActiveRooms,
		m.MatchesStarted,
		m.BotMatches,
		m.RoundsResolved,
		m.Forfeits,
		m.RoundSeconds,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) IncOnlinePlayers()         { m.metrics.OnlinePlayers.Inc() }
func (m *Monitor) DecOnlinePlayers()         { m.metrics.OnlinePlayers.Dec() }
func (m *Monitor) SetQueuedRanked(count int) { m.metrics.QueuedRanked.Set(float64(count)) }
func (m *Monitor) SetQueuedCasual(count int) { m.metrics.QueuedCasual.Set(float64(count)) }
func (m *Monitor) SetActiveRooms(count int)  { m.metrics.ActiveRooms.Set(float64(count)) }
func (m *Monitor) IncMatchesStarted(mode string) {
	m.metrics.MatchesStarted.WithLabelValues(mode).Inc()
}
func (m *Monitor) IncBotMatches()     { m.metrics.BotMatches.Inc() }
func (m *Monitor) IncRoundsResolved() { m.metrics.RoundsResolved.Inc() }
func (m *Monitor) IncForfeits()       { m.metrics.Forfeits.Inc() }

func (m *Monitor) ObserveRoundSeconds(d time.Duration) {
	m.metrics.RoundSeconds.Observe(d.Seconds())
}
