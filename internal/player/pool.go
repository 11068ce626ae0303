package player

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
)

// Factory creates the player backing one record.
type Factory func(rec camera.Record) Player

// PoolConfig configures a Pool.
type PoolConfig struct {
	URI       camera.URIOptions
	Options   Options
	Reconnect ReconnectConfig
	// MaxStreams > 0 caps how many records get a running player; the rest
	// stay unadmitted.
	MaxStreams int
	Logger     zerolog.Logger
	Observer   Observer
}

type poolEntry struct {
	rec      camera.Record
	sup      *Supervisor
	admitted bool
}

// Pool owns the supervised players of one multi view.
type Pool struct {
	cfg PoolConfig
	log zerolog.Logger

	mu      sync.RWMutex
	entries []*poolEntry
	started bool
}

// NewPool creates one supervisor per record, in order. Nothing runs until
// StartAll.
func NewPool(records []camera.Record, factory Factory, cfg PoolConfig) *Pool {
	p := &Pool{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "pool").Logger(),
	}
	for i, rec := range records {
		target := TargetFor(rec, cfg.URI)
		sup := NewSupervisor(factory(rec), target, cfg.Options, cfg.Reconnect, cfg.Logger, cfg.Observer)
		p.entries = append(p.entries, &poolEntry{
			rec:      rec,
			sup:      sup,
			admitted: cfg.MaxStreams <= 0 || i < cfg.MaxStreams,
		})
	}
	return p
}

// StartAll starts every admitted supervisor.
func (p *Pool) StartAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	admitted := 0
	for _, e := range p.entries {
		if e.admitted {
			e.sup.Start(ctx)
			admitted++
		}
	}
	p.started = true
	p.log.Info().Int("streams", admitted).Int("cameras", len(p.entries)).Msg("pool started")
}

// StopAll stops every supervisor concurrently and waits for them.
func (p *Pool) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}

	var wg sync.WaitGroup
	for _, e := range p.entries {
		wg.Add(1)
		go func(s *Supervisor) {
			defer wg.Done()
			s.Stop()
		}(e.sup)
	}
	wg.Wait()
	p.started = false
	p.log.Info().Msg("pool stopped")
}

// SetFPS applies fps to every player.
func (p *Pool) SetFPS(fps int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entries {
		e.sup.Player().SetFPS(fps)
	}
}

// Len returns the number of records in the pool.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Records returns the pool records in order.
func (p *Pool) Records() []camera.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]camera.Record, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.rec
	}
	return out
}

func (p *Pool) entry(key string) *poolEntry {
	for _, e := range p.entries {
		if e.rec.DeviceName == key {
			return e
		}
	}
	return nil
}

// Supervisor returns the supervisor of key, or nil.
func (p *Pool) Supervisor(key string) *Supervisor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e := p.entry(key); e != nil {
		return e.sup
	}
	return nil
}

// Buffer returns the frame buffer of key, or nil.
func (p *Pool) Buffer(key string) *FrameBuffer {
	if s := p.Supervisor(key); s != nil {
		return s.Player().Frames()
	}
	return nil
}

// Admitted reports whether key got a player slot.
func (p *Pool) Admitted(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e := p.entry(key)
	return e != nil && e.admitted
}

// States returns the status of every record by key.
func (p *Pool) States() map[string]Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Status, len(p.entries))
	for _, e := range p.entries {
		out[e.rec.DeviceName] = e.sup.Status()
	}
	return out
}

// Player backends accepted by NewFactory.
const (
	BackendFFmpeg  = "ffmpeg"
	BackendPattern = "pattern"
)

// NewFactory returns a Factory for backend.
func NewFactory(backend string, ff FFmpegConfig, pattern PatternConfig) (Factory, error) {
	switch backend {
	case "", BackendFFmpeg:
		return func(camera.Record) Player { return NewFFmpegPlayer(ff) }, nil
	case BackendPattern:
		return func(camera.Record) Player { return NewPatternPlayer(pattern) }, nil
	}
	return nil, errors.NotSupportedf("player backend %q", backend)
}
