// Package player plays camera streams into frame buffers.
//
// A Player is handed a fully built connection URI and reports back through
// Events. Decoding is delegated to an external ffmpeg process; the package
// only splits and decodes the MJPEG it emits. A Supervisor restarts a
// failed Player with bounded exponential backoff and a Pool runs one
// Supervisor per camera of a multi view.
package player

import (
	"context"
	"strings"

	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
)

// ResizeMode controls how frames are fitted into a tile.
type ResizeMode string

const (
	ResizeContain ResizeMode = "contain"
	ResizeCover   ResizeMode = "cover"
	ResizeStretch ResizeMode = "stretch"
)

// ParseResizeMode accepts contain, cover or stretch. Empty means contain.
func ParseResizeMode(s string) (ResizeMode, error) {
	switch m := ResizeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ResizeContain, nil
	case ResizeContain, ResizeCover, ResizeStretch:
		return m, nil
	}
	return ResizeContain, errors.NotValidf("resize mode %q", s)
}

// Options are the per-start player settings.
type Options struct {
	// Autoplay false makes Start a no-op that only remembers the URI.
	Autoplay   bool
	ResizeMode ResizeMode
}

// Events are the callbacks a player fires when a run ends on its own.
// Exactly one of them fires per run; a run ended by Stop or by context
// cancellation fires neither. Callbacks run on the player's goroutine.
type Events struct {
	OnError func(err error)
	OnEnded func()
}

// Player renders one stream.
type Player interface {
	// Start launches a run for uri. It fails if a run is already active.
	Start(ctx context.Context, uri string, opts Options) error
	// Stop ends the active run, if any, and waits for it to wind down.
	Stop() error
	// Running reports whether a run is active.
	Running() bool
	// Frames returns the buffer the player writes into.
	Frames() *FrameBuffer
	// SetFPS caps the rate at which frames are decoded and published.
	SetFPS(fps int)
	// FPS returns the current cap.
	FPS() int
	// SetEvents replaces the event callbacks.
	SetEvents(ev Events)
}

// Observer receives player lifecycle events.
type Observer interface {
	PlayerEvent(event string)
	StreamActive(active bool)
}

// Event names passed to Observer.PlayerEvent.
const (
	EventStart     = "start"
	EventError     = "error"
	EventEnd       = "end"
	EventReconnect = "reconnect"
	EventGiveUp    = "giveup"
)

type nopObserver struct{}

func (nopObserver) PlayerEvent(string) {}
func (nopObserver) StreamActive(bool) {}

// Target identifies a stream for playback and for logs. URI is only ever
// handed to a Player; logs use Name and Endpoint.
type Target struct {
	Name     string
	Endpoint string
	URI      string
}

// TargetFor builds the target of rec.
func TargetFor(rec camera.Record, opts camera.URIOptions) Target {
	return Target{
		Name:     rec.DeviceName,
		Endpoint: rec.Endpoint(),
		URI:      camera.StreamURI(rec, opts),
	}
}

// ErrAlreadyRunning is returned by Start on an active player.
var ErrAlreadyRunning = errors.New("player already running")

const (
	minFPS = 1
	maxFPS = 60
)

func clampFPS(fps int) int {
	if fps < minFPS {
		return minFPS
	}
	if fps > maxFPS {
		return maxFPS
	}
	return fps
}
