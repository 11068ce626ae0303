package player

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
)

// FFmpegConfig configures FFmpegPlayer.
type FFmpegConfig struct {
	// Binary is the ffmpeg executable; empty means "ffmpeg" on PATH.
	Binary string
	// Transport is the RTSP lower transport, tcp or udp.
	Transport string
	// FPS caps decoded frames per second.
	FPS    int
	Logger zerolog.Logger
}

// FFmpegPlayer decodes a stream by running ffmpeg with MJPEG output on a
// pipe and publishing every decoded frame, rate limited to the FPS cap.
type FFmpegPlayer struct {
	cfg    FFmpegConfig
	frames *FrameBuffer
	log    zerolog.Logger

	targetFPS atomic.Int32

	mu       sync.Mutex
	events   Events
	running  bool
	stopping bool
	cancel   context.CancelFunc
	done     chan struct{}

	// overridden in tests
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewFFmpegPlayer returns an idle player.
func NewFFmpegPlayer(cfg FFmpegConfig) *FFmpegPlayer {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	p := &FFmpegPlayer{
		cfg:        cfg,
		frames:     NewFrameBuffer(),
		log:        cfg.Logger.With().Str("component", "player").Str("backend", "ffmpeg").Logger(),
		newCommand: exec.CommandContext,
	}
	p.targetFPS.Store(int32(clampFPS(cfg.FPS)))
	return p
}

func (p *FFmpegPlayer) Frames() *FrameBuffer { return p.frames }

func (p *FFmpegPlayer) FPS() int { return int(p.targetFPS.Load()) }

// SetFPS changes the cap without restarting ffmpeg; surplus frames are
// skipped before decoding.
func (p *FFmpegPlayer) SetFPS(fps int) {
	fps = clampFPS(fps)
	if old := p.targetFPS.Swap(int32(fps)); old != int32(fps) {
		p.log.Debug().Int32("from", old).Int("to", fps).Msg("fps cap changed")
	}
}

func (p *FFmpegPlayer) SetEvents(ev Events) {
	p.mu.Lock()
	p.events = ev
	p.mu.Unlock()
}

func (p *FFmpegPlayer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// args builds the ffmpeg command line for uri.
func (p *FFmpegPlayer) args(uri string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if u, err := url.Parse(uri); err == nil && strings.HasPrefix(strings.ToLower(u.Scheme), "rtsp") {
		args = append(args, "-rtsp_transport", p.cfg.Transport)
	}
	args = append(args,
		"-i", uri,
		"-an",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
	return args
}

func (p *FFmpegPlayer) Start(ctx context.Context, uri string, opts Options) error {
	if !opts.Autoplay {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := p.newCommand(runCtx, p.cfg.Binary, p.args(uri)...)
	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.Annotate(err, "ffmpeg stdout")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return &StreamError{Category: ErrCategoryUnknown, Err: errors.Annotate(err, "start ffmpeg")}
	}

	p.running = true
	p.stopping = false
	p.cancel = cancel
	p.done = make(chan struct{})
	p.frames.Reset()

	p.log.Info().
		Str("uri", camera.RedactURI(uri)).
		Int("pid", cmd.Process.Pid).
		Int("fps", p.FPS()).
		Msg("ffmpeg started")

	go p.run(runCtx, cmd, stdout, stderr, p.done)
	return nil
}

func (p *FFmpegPlayer) run(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, stderr *tailBuffer, done chan struct{}) {
	frames := newMJPEGReader(stdout)
	var lastPublished time.Time
	var readErr error

	for {
		data, err := frames.Next()
		if err == errFrameTooLarge {
			p.frames.MarkDropped()
			continue
		}
		if err != nil {
			readErr = err
			break
		}

		interval := time.Second / time.Duration(p.targetFPS.Load())
		now := time.Now()
		if now.Sub(lastPublished) < interval {
			p.frames.MarkDropped()
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			p.frames.MarkDropped()
			continue
		}
		lastPublished = now
		p.frames.Write(img)

		if n := p.frames.FrameCount(); n%300 == 1 {
			b := img.Bounds()
			p.log.Debug().Uint64("frame", n).Int("w", b.Dx()).Int("h", b.Dy()).Uint64("dropped", p.frames.Dropped()).Msg("frame")
		}
	}

	waitErr := cmd.Wait()

	p.mu.Lock()
	stopped := p.stopping || ctx.Err() != nil
	p.running = false
	p.cancel()
	ev := p.events
	p.mu.Unlock()
	close(done)

	if stopped {
		p.log.Debug().Msg("ffmpeg stopped")
		return
	}

	detail := RedactText(strings.TrimSpace(stderr.String()))
	switch {
	case waitErr != nil:
		serr := &StreamError{Category: Classify(detail), Detail: detail, Err: waitErr}
		p.log.Warn().Str("category", serr.Category.String()).Str("detail", detail).Err(waitErr).Msg("ffmpeg exited with error")
		if ev.OnError != nil {
			ev.OnError(serr)
		}
	case readErr != nil && readErr != io.EOF:
		serr := &StreamError{Category: ErrCategoryUnknown, Err: readErr}
		p.log.Warn().Err(readErr).Msg("stream read failed")
		if ev.OnError != nil {
			ev.OnError(serr)
		}
	default:
		p.log.Info().Uint64("frames", p.frames.FrameCount()).Msg("stream ended")
		if ev.OnEnded != nil {
			ev.OnEnded()
		}
	}
}

// Stop kills ffmpeg and waits until the reader goroutine exited.
func (p *FFmpegPlayer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	p.cancel()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(5 * time.Second):
		return errors.Timeoutf("ffmpeg shutdown")
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
