package ui

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/nav"
	"camera-viewer-go/internal/perf"
	"camera-viewer-go/internal/player"
)

// streamView is a screen playing one or more cameras: the single-camera
// view when it holds one record, the multi-camera view otherwise.
type streamView struct {
	app     *App
	title   string
	records []camera.Record
	multi   bool
	log     zerolog.Logger

	pool  *player.Pool
	tiles []*StreamTile

	// refresh loop state, indexed like tiles
	lastRead  []uint64
	nightBufs []*image.RGBA

	perfController *perf.AdaptiveController

	content fyne.CanvasObject

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newStreamView(a *App, title string, records []camera.Record, multi bool, sessionID string) *streamView {
	v := &streamView{
		app:       a,
		title:     title,
		records:   camera.Clone(records),
		multi:     multi,
		lastRead:  make([]uint64, len(records)),
		nightBufs: make([]*image.RGBA, len(records)),
	}
	logCtx := a.log.With().Str("component", "view")
	if sessionID != "" {
		logCtx = logCtx.Str("session", sessionID)
	}
	v.log = logCtx.Logger()

	cfg := a.cfg
	v.pool = player.NewPool(v.records, a.factory, player.PoolConfig{
		URI:        cfg.URIOptions(),
		Options:    cfg.PlayerOptions(),
		Reconnect:  cfg.Reconnect(),
		MaxStreams: cfg.MaxStreams,
		Logger:     a.log,
		Observer:   a.observer,
	})

	mode := cfg.PlayerOptions().ResizeMode
	for _, rec := range v.records {
		rec := rec
		tile := NewStreamTile(rec.DeviceName, mode, func() { v.onTileTap(rec) }, func() { v.onTileLongPress(rec) })
		v.tiles = append(v.tiles, tile)

		if !v.pool.Admitted(rec.DeviceName) {
			tile.SetStatus("Not started: stream limit")
			continue
		}
		if !cfg.Autoplay {
			tile.SetStatus("Autoplay off")
		}
		v.pool.Supervisor(rec.DeviceName).OnStatus(func(st player.Status) {
			tile.SetStatus(statusText(st, cfg.MaxRetries))
		})
	}

	v.content = v.build()
	return v
}

func (v *streamView) build() fyne.CanvasObject {
	back := widget.NewButton("Back", func() { v.app.router.Back() })
	night := widget.NewButton(nightLabel(v.app.nightMode.Load()), nil)
	night.OnTapped = func() {
		v.app.toggleNightMode()
		night.SetText(nightLabel(v.app.nightMode.Load()))
	}
	header := container.NewBorder(nil, nil, back, night, widget.NewLabelWithStyle(v.title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}))

	var body fyne.CanvasObject
	if v.multi {
		body = layoutTiles(v.app.cfg.MultiLayout, v.app.cfg.GridColumns, v.tiles)
	} else {
		body = v.tiles[0]
	}
	return container.NewBorder(header, nil, nil, nil, body)
}

func nightLabel(on bool) string {
	if on {
		return "Night Mode: On"
	}
	return "Night Mode: Off"
}

// statusText is the overlay shown for a stream state; playing shows none.
func statusText(st player.Status, maxRetries int) string {
	switch st.State {
	case player.StateIdle:
		return "Autoplay off"
	case player.StateConnecting:
		return "Connecting..."
	case player.StatePlaying:
		return ""
	case player.StateRetrying:
		return fmt.Sprintf("Reconnecting in %s (%d/%d)", st.RetryIn.Round(time.Second), st.Attempt, maxRetries)
	case player.StateFailed:
		var serr *player.StreamError
		if errors.As(st.Err, &serr) {
			return "Failed: " + serr.Category.String() + " error"
		}
		return "Failed"
	case player.StateEnded:
		return "Stream ended"
	case player.StateStopped:
		return "Stopped"
	}
	return ""
}

func (v *streamView) onTileTap(rec camera.Record) {
	if v.multi {
		v.app.router.Push(nav.CameraRoute{Camera: rec})
		return
	}
	w := v.app.window
	w.SetFullScreen(!w.FullScreen())
}

// onTileLongPress restarts the stream with a fresh retry budget.
func (v *streamView) onTileLongPress(rec camera.Record) {
	sup := v.pool.Supervisor(rec.DeviceName)
	if sup == nil || !v.pool.Admitted(rec.DeviceName) {
		return
	}
	v.log.Info().Str("camera", rec.DeviceName).Msg("manual stream restart")
	go sup.Restart(v.ctx)
}

// start launches the players and the background loops.
func (v *streamView) start(parent context.Context) {
	v.ctx, v.cancel = context.WithCancel(parent)
	v.pool.StartAll(v.ctx)

	cfg := v.app.cfg
	if cfg.DynamicFPSEnabled {
		v.perfController = perf.NewAdaptiveController(v.app.sampler, v.pool, cfg.Perf(), v.app.log)
		v.goLoop(v.perfController.Run)
	}
	v.goLoop(v.refreshLoop)
	v.goLoop(v.healthLoop)

	v.log.Info().Str("title", v.title).Int("cameras", len(v.records)).Msg("view opened")
}

func (v *streamView) goLoop(fn func(context.Context)) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		fn(v.ctx)
	}()
}

// stop ends every player and loop of the view. Safe to call twice.
func (v *streamView) stop() {
	v.stopOnce.Do(func() {
		if v.cancel != nil {
			v.cancel()
		}
		v.pool.StopAll()
		v.wg.Wait()
		v.log.Info().Str("title", v.title).Msg("view closed")
	})
}

func (v *streamView) refreshLoop(ctx context.Context) {
	uiFPS := v.app.cfg.UIFPS
	if uiFPS <= 0 {
		uiFPS = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(uiFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh()
		}
	}
}

// refresh pushes the newest frame of every stream into its tile.
func (v *streamView) refresh() int {
	night := v.app.nightMode.Load()
	cover := v.app.cfg.PlayerOptions().ResizeMode == player.ResizeCover
	updated := 0

	for i, rec := range v.records {
		buf := v.pool.Buffer(rec.DeviceName)
		if buf == nil {
			continue
		}
		// a restarted player resets its counter
		if buf.FrameCount() < v.lastRead[i] {
			v.lastRead[i] = 0
		}
		frame, n, ok := buf.ReadIfNew(v.lastRead[i])
		if !ok || frame == nil {
			continue
		}
		v.lastRead[i] = n

		display := frame
		if cover {
			size := v.tiles[i].Size()
			display = coverCrop(display, size.Width, size.Height)
		}
		if night {
			v.nightBufs[i] = applyNightMode(display, v.nightBufs[i])
			display = v.nightBufs[i]
		}
		v.tiles[i].SetFrame(display)
		updated++
	}
	return updated
}

func (v *streamView) healthLoop(ctx context.Context) {
	interval := v.app.cfg.HealthLogIntervalSec
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.logHealth()
		}
	}
}

// health counts streams as online (fresh frame), stale (playing without a
// recent frame) or down (not playing).
type health struct {
	Online, Stale, Down int
}

func (v *streamView) health() health {
	var h health
	staleAfter := time.Duration(v.app.cfg.StaleFrameTimeoutSec * float64(time.Second))
	states := v.pool.States()

	for _, rec := range v.records {
		if states[rec.DeviceName].State != player.StatePlaying {
			h.Down++
			continue
		}
		if buf := v.pool.Buffer(rec.DeviceName); buf == nil || buf.Stale(staleAfter) {
			h.Stale++
			continue
		}
		h.Online++
	}
	return h
}

func (v *streamView) logHealth() {
	h := v.health()
	ev := v.log.Info()
	if h.Stale > 0 || h.Down > 0 {
		ev = v.log.Warn()
	}
	if v.perfController != nil {
		ev = ev.Int("fps", v.perfController.FPS())
	}
	ev.Int("online", h.Online).Int("stale", h.Stale).Int("down", h.Down).Int("total", len(v.records)).Msg("stream health")
}
