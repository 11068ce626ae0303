package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ReconnectConfig bounds the restart policy of a Supervisor.
type ReconnectConfig struct {
	Enabled       bool
	MaxRetries    int           // consecutive failed runs before giving up
	RetryDelay    time.Duration // delay before the first retry
	MaxRetryDelay time.Duration // cap on the doubled delay
	// StableAfter is how long a run must have played for the retry count
	// to start over.
	StableAfter time.Duration
}

// DefaultReconnectConfig retries 5 times: 1s, 2s, 4s, 8s, 16s.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enabled:       true,
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		StableAfter:   10 * time.Second,
	}
}

// Backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func Backoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return cfg.MaxRetryDelay
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}

// State is the lifecycle state of a supervised stream.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StateRetrying
	StateFailed
	StateEnded
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	case StateEnded:
		return "ended"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Status is a snapshot of a supervised stream.
type Status struct {
	State   State
	Attempt int
	Err     error
	// RetryIn is the pending backoff while State is StateRetrying.
	RetryIn time.Duration
}

type runOutcome struct {
	err error // nil for a clean end
}

// Supervisor runs a Player against one target and restarts it after errors
// or an unexpected end, with exponential backoff, until MaxRetries
// consecutive runs failed. A run that produced frames for at least
// StableAfter resets the count.
type Supervisor struct {
	player Player
	target Target
	opts   Options
	cfg    ReconnectConfig
	log    zerolog.Logger
	obs    Observer

	mu       sync.Mutex
	status   Status
	onStatus []func(Status)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSupervisor wires p to target. obs may be nil.
func NewSupervisor(p Player, target Target, opts Options, cfg ReconnectConfig, logger zerolog.Logger, obs Observer) *Supervisor {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Supervisor{
		player: p,
		target: target,
		opts:   opts,
		cfg:    cfg,
		log:    logger.With().Str("component", "supervisor").Str("camera", target.Name).Str("endpoint", target.Endpoint).Logger(),
		obs:    obs,
	}
}

// runEvents routes the events of one run into outcomes. Each run gets its
// own channel so an event that lost the race against cancellation never
// reaches a later run.
func runEvents(outcomes chan runOutcome) Events {
	deliver := func(o runOutcome) {
		select {
		case outcomes <- o:
		default:
		}
	}
	return Events{
		OnError: func(err error) { deliver(runOutcome{err: err}) },
		OnEnded: func() { deliver(runOutcome{}) },
	}
}

// Player returns the supervised player.
func (s *Supervisor) Player() Player { return s.player }

// Target returns the supervised target.
func (s *Supervisor) Target() Target { return s.target }

// OnStatus registers fn for every status change. fn runs on the
// supervisor goroutine.
func (s *Supervisor) OnStatus(fn func(Status)) {
	s.mu.Lock()
	s.onStatus = append(s.onStatus, fn)
	s.mu.Unlock()
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	listeners := s.onStatus
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

// Start launches the supervision loop. Calling Start while the loop is
// still running is a no-op; after it gave up or was stopped Start begins
// again with a fresh retry budget.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			s.mu.Unlock()
			return
		}
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.loop(ctx, done)
}

// Stop ends supervision and the player, and waits for both.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
}

// Restart stops and starts again with a fresh retry budget.
func (s *Supervisor) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if !s.opts.Autoplay {
		s.setStatus(Status{State: StateIdle})
		return
	}

	attempt := 0
	for {
		s.setStatus(Status{State: StateConnecting, Attempt: attempt})

		outcomes := make(chan runOutcome, 1)
		s.player.SetEvents(runEvents(outcomes))

		var outcome runOutcome
		if err := s.player.Start(ctx, s.target.URI, s.opts); err != nil {
			outcome = runOutcome{err: err}
		} else {
			before := s.player.Frames().FrameCount()
			startedAt := time.Now()
			s.obs.PlayerEvent(EventStart)
			s.obs.StreamActive(true)
			s.setStatus(Status{State: StatePlaying, Attempt: attempt})
			s.log.Info().Int("attempt", attempt).Msg("stream playing")

			select {
			case <-ctx.Done():
				s.player.Stop()
				s.obs.StreamActive(false)
				s.setStatus(Status{State: StateStopped})
				return
			case outcome = <-outcomes:
				s.player.Stop()
				s.obs.StreamActive(false)
			}

			if s.player.Frames().FrameCount() > before && time.Since(startedAt) >= s.cfg.StableAfter {
				attempt = 0
			}
		}

		final := StateFailed
		if outcome.err != nil {
			s.obs.PlayerEvent(EventError)
			s.log.Warn().Err(outcome.err).Msg("stream error")
		} else {
			final = StateEnded
			s.obs.PlayerEvent(EventEnd)
			s.log.Info().Msg("stream ended")
		}

		if ctx.Err() != nil {
			s.setStatus(Status{State: StateStopped})
			return
		}
		if !s.cfg.Enabled {
			s.log.Info().Msg("reconnect disabled, not retrying")
			s.setStatus(Status{State: final, Err: outcome.err})
			return
		}

		attempt++
		if attempt > s.cfg.MaxRetries {
			s.obs.PlayerEvent(EventGiveUp)
			s.log.Error().Int("retries", s.cfg.MaxRetries).Msg("giving up on stream")
			s.setStatus(Status{State: StateFailed, Attempt: attempt - 1, Err: outcome.err})
			return
		}

		delay := Backoff(attempt, s.cfg)
		s.obs.PlayerEvent(EventReconnect)
		s.log.Warn().Int("attempt", attempt).Int("max_retries", s.cfg.MaxRetries).Dur("delay", delay).Msg("retrying stream")
		s.setStatus(Status{State: StateRetrying, Attempt: attempt, Err: outcome.err, RetryIn: delay})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(Status{State: StateStopped})
			return
		case <-timer.C:
		}
	}
}
