package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics exposes the loop's health on /metrics. Each Server carries its
// own registry so multiple instances (tests) never collide.
type metrics struct {
	reg *prometheus.Registry

	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
	activeGames  prometheus.Gauge
	clients      prometheus.Gauge
	handsPlayed  prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		reg: reg,
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_ticks_total",
			Help: "Server loop ticks executed.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdem_tick_duration_seconds",
			Help:    "Wall time spent advancing all games in one tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		activeGames: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holdem_active_games",
			Help: "Games currently registered.",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holdem_connected_clients",
			Help: "Live client sessions.",
		}),
		handsPlayed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holdem_hands_played",
			Help: "Hands completed across active games.",
		}),
	}
}

func (m *metrics) observe(tickTime time.Duration, games, clients, hands int) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(tickTime.Seconds())
	m.activeGames.Set(float64(games))
	m.clients.Set(float64(clients))
	m.handsPlayed.Set(float64(hands))
}

// ServeMetrics blocks serving this server's Prometheus endpoint; callers
// run it in its own goroutine.
func (s *Server) ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.reg, promhttp.HandlerOpts{}))
	s.logger.Info("listening", "transport", "metrics", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
