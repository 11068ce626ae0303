// Package metrics exposes player and registry counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics implements player.Observer and registry.Observer on top of a
// private Prometheus registry.
type Metrics struct {
	Registry *prometheus.Registry

	playerEvents  *prometheus.CounterVec
	activeStreams prometheus.Gauge
	mutations     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		playerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camviewer_player_events_total",
			Help: "Player lifecycle events by kind.",
		}, []string{"event"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camviewer_active_streams",
			Help: "Streams currently playing.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camviewer_registry_mutations_total",
			Help: "Camera registry mutations by operation and result.",
		}, []string{"op", "result"}),
	}
	m.Registry.MustRegister(m.playerEvents, m.activeStreams, m.mutations)
	return m
}

func (m *Metrics) PlayerEvent(event string) {
	m.playerEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) StreamActive(active bool) {
	if active {
		m.activeStreams.Inc()
	} else {
		m.activeStreams.Dec()
	}
}

func (m *Metrics) ObserveMutation(op string, err error) {
	m.mutations.WithLabelValues(op, Result(err)).Inc()
}

// Result buckets a mutation error into a label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.NotValid):
		return "invalid"
	case errors.Is(err, errors.AlreadyExists):
		return "duplicate"
	case errors.Is(err, errors.NotFound):
		return "missing"
	}
	return "error"
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the listener and returns immediately.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	if addr == "" {
		return nil
	}
	log := logger.With().Str("component", "metrics").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Annotatef(err, "metrics listener %s", addr)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
		return nil
	}
}
