// Package perf lowers the frame rate of running players while the machine
// is under load and raises it back once it calms down.
package perf

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FPSTarget receives frame rate changes; player.Pool satisfies it.
type FPSTarget interface {
	SetFPS(fps int)
}

// Config bounds the controller.
type Config struct {
	Interval      time.Duration
	MinFPS        int
	MaxFPS        int
	Step          int
	LoadThreshold float64
	TempThreshold float64
	// StressHold consecutive stressed samples trigger a reduction.
	StressHold int
	// RecoverHold consecutive calm samples trigger an increase.
	RecoverHold int
}

// AdaptiveController steps the FPS of a target between MinFPS and MaxFPS.
type AdaptiveController struct {
	sampler Sampler
	target  FPSTarget
	cfg     Config
	log     zerolog.Logger

	mu          sync.RWMutex
	fps         int
	stressed    bool
	stressCount int
	calmCount   int
	last        Sample
}

// NewAdaptiveController starts at cfg.MaxFPS.
func NewAdaptiveController(sampler Sampler, target FPSTarget, cfg Config, logger zerolog.Logger) *AdaptiveController {
	if cfg.Step <= 0 {
		cfg.Step = 2
	}
	if cfg.MinFPS <= 0 {
		cfg.MinFPS = 1
	}
	if cfg.MaxFPS < cfg.MinFPS {
		cfg.MaxFPS = cfg.MinFPS
	}
	if cfg.StressHold <= 0 {
		cfg.StressHold = 1
	}
	if cfg.RecoverHold <= 0 {
		cfg.RecoverHold = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &AdaptiveController{
		sampler: sampler,
		target:  target,
		cfg:     cfg,
		log:     logger.With().Str("component", "perf").Logger(),
		fps:     cfg.MaxFPS,
	}
}

// Run samples every Interval until ctx is done.
func (ac *AdaptiveController) Run(ctx context.Context) {
	ticker := time.NewTicker(ac.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := ac.sampler.Sample()
			if err != nil {
				ac.log.Debug().Err(err).Msg("sample failed")
				continue
			}
			ac.Observe(s)
		}
	}
}

// Observe feeds one sample and applies any resulting FPS change to the
// target. It reports whether the FPS changed.
func (ac *AdaptiveController) Observe(s Sample) bool {
	ac.mu.Lock()
	ac.last = s
	stressed := s.Load1 > ac.cfg.LoadThreshold || (s.HasTemp && s.TempC > ac.cfg.TempThreshold)

	old := ac.fps
	if stressed {
		ac.calmCount = 0
		ac.stressCount++
		if ac.stressCount >= ac.cfg.StressHold {
			ac.stressed = true
			ac.stressCount = 0
			ac.fps = max(ac.cfg.MinFPS, ac.fps-ac.cfg.Step)
		}
	} else {
		ac.stressCount = 0
		ac.calmCount++
		if ac.calmCount >= ac.cfg.RecoverHold {
			ac.calmCount = 0
			ac.fps = min(ac.cfg.MaxFPS, ac.fps+ac.cfg.Step)
			if ac.fps == ac.cfg.MaxFPS {
				ac.stressed = false
			}
		}
	}
	fps := ac.fps
	ac.mu.Unlock()

	if fps == old {
		return false
	}
	ac.log.Info().
		Float64("load", s.Load1).
		Float64("temp_c", s.TempC).
		Int("from", old).
		Int("to", fps).
		Msg("adjusting stream fps")
	ac.target.SetFPS(fps)
	return true
}

// FPS returns the current setting.
func (ac *AdaptiveController) FPS() int {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.fps
}

// Status returns the last sample and whether the controller is holding the
// FPS below its maximum because of stress.
func (ac *AdaptiveController) Status() (Sample, bool) {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.last, ac.stressed
}
