package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.PlayerEvent("start")
	m.PlayerEvent("start")
	m.PlayerEvent("error")
	m.StreamActive(true)
	m.StreamActive(true)
	m.StreamActive(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.playerEvents.WithLabelValues("start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playerEvents.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeStreams))

	m.ObserveMutation("add", nil)
	m.ObserveMutation("add", errors.AlreadyExistsf("camera %q", "A"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("add", "duplicate")))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "invalid", Result(errors.NotValidf("port")))
	assert.Equal(t, "missing", Result(errors.NotFoundf("camera")))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PlayerEvent("reconnect")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `camviewer_player_events_total{event="reconnect"} 1`)
}

func TestServeDisabled(t *testing.T) {
	assert.NoError(t, New().Serve(context.Background(), "", zerolog.Nop()))
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New().Serve(ctx, "127.0.0.1:0", zerolog.Nop()) }()
	cancel()
	assert.NoError(t, <-done)
}
