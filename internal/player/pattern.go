package player

import (
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
)

// PatternConfig configures PatternPlayer.
type PatternConfig struct {
	Width  int
	Height int
	FPS    int
	// FailAfter > 0 ends each run with an error after that many frames.
	FailAfter int
	// EndAfter > 0 ends each run cleanly after that many frames.
	EndAfter int
	Logger   zerolog.Logger
}

// PatternPlayer renders a synthetic moving picture instead of a stream.
// It needs no network and no external binary, which makes it the backend
// for demos and tests.
type PatternPlayer struct {
	cfg    PatternConfig
	frames *FrameBuffer
	log    zerolog.Logger

	targetFPS atomic.Int32
	runs      atomic.Int32

	mu      sync.Mutex
	events  Events
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// ErrPatternFailure is the error a PatternPlayer reports with FailAfter.
var ErrPatternFailure = errors.New("simulated stream failure")

func NewPatternPlayer(cfg PatternConfig) *PatternPlayer {
	if cfg.Width <= 0 {
		cfg.Width = 320
	}
	if cfg.Height <= 0 {
		cfg.Height = 240
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	p := &PatternPlayer{
		cfg:    cfg,
		frames: NewFrameBuffer(),
		log:    cfg.Logger.With().Str("component", "player").Str("backend", "pattern").Logger(),
	}
	p.targetFPS.Store(int32(clampFPS(cfg.FPS)))
	return p
}

func (p *PatternPlayer) Frames() *FrameBuffer { return p.frames }
func (p *PatternPlayer) FPS() int             { return int(p.targetFPS.Load()) }
func (p *PatternPlayer) SetFPS(fps int)       { p.targetFPS.Store(int32(clampFPS(fps))) }

// Runs returns how many runs were started.
func (p *PatternPlayer) Runs() int { return int(p.runs.Load()) }

func (p *PatternPlayer) SetEvents(ev Events) {
	p.mu.Lock()
	p.events = ev
	p.mu.Unlock()
}

func (p *PatternPlayer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PatternPlayer) Start(ctx context.Context, uri string, opts Options) error {
	if !opts.Autoplay {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.runs.Add(1)

	p.log.Info().Str("uri", camera.RedactURI(uri)).Msg("pattern started")
	go p.run(runCtx, seedFor(uri), p.done)
	return nil
}

func (p *PatternPlayer) run(ctx context.Context, seed uint32, done chan struct{}) {
	var produced int
	var outcome error
	ended := false

	for {
		interval := time.Second / time.Duration(p.targetFPS.Load())
		select {
		case <-ctx.Done():
		case <-time.After(interval):
			p.frames.Write(renderPattern(p.cfg.Width, p.cfg.Height, produced, seed))
			produced++
			switch {
			case p.cfg.FailAfter > 0 && produced >= p.cfg.FailAfter:
				outcome = ErrPatternFailure
			case p.cfg.EndAfter > 0 && produced >= p.cfg.EndAfter:
				ended = true
			default:
				continue
			}
		}
		break
	}

	p.mu.Lock()
	stopped := ctx.Err() != nil
	p.running = false
	p.cancel()
	ev := p.events
	p.mu.Unlock()
	close(done)

	switch {
	case stopped:
	case outcome != nil:
		if ev.OnError != nil {
			ev.OnError(&StreamError{Category: ErrCategoryUnknown, Err: outcome})
		}
	case ended:
		if ev.OnEnded != nil {
			ev.OnEnded()
		}
	}
}

func (p *PatternPlayer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	done := p.done
	p.mu.Unlock()
	<-done
	return nil
}

func seedFor(uri string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(camera.RedactURI(uri)))
	return h.Sum32()
}

// renderPattern draws a gradient tinted per stream with a bar sweeping
// across it, so a frozen feed is visible at a glance.
func renderPattern(w, h, frame int, seed uint32) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	tr, tg, tb := uint8(seed), uint8(seed>>8), uint8(seed>>16)
	bar := (frame * 4) % w

	for y := 0; y < h; y++ {
		shade := uint8(64 + 128*y/h)
		for x := 0; x < w; x++ {
			c := color.RGBA{shade/2 + tr/2, shade/2 + tg/2, shade/2 + tb/2, 255}
			if x >= bar && x < bar+8 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
