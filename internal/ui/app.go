package ui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/config"
	"camera-viewer-go/internal/nav"
	"camera-viewer-go/internal/perf"
	"camera-viewer-go/internal/player"
	"camera-viewer-go/internal/probe"
	"camera-viewer-go/internal/registry"
	"camera-viewer-go/internal/selection"
)

// ProbeFunc checks that an RTSP endpoint answers.
type ProbeFunc func(ctx context.Context, uri string, timeout time.Duration) (probe.Result, error)

// Deps are the collaborators of an App. Registry and Factory are required;
// the rest fall back to working defaults.
type Deps struct {
	Config   *config.Config
	Registry *registry.Registry
	Factory  player.Factory
	Observer player.Observer
	Sampler  perf.Sampler
	Prober   ProbeFunc
	Logger   zerolog.Logger
}

// App is the camera viewer: the list screen plus the single and multi
// camera views, switched by a route stack.
type App struct {
	fyneApp fyne.App
	window  fyne.Window

	cfg      *config.Config
	reg      *registry.Registry
	factory  player.Factory
	observer player.Observer
	sampler  perf.Sampler
	prober   ProbeFunc
	log      zerolog.Logger

	router    *nav.Router
	selection *selection.Selection
	policy    nav.EmptySelectionPolicy

	list *listScreen

	// active is the view currently playing, nil on the list screen
	mu     sync.Mutex
	active *streamView

	ctx    context.Context
	cancel context.CancelFunc

	nightMode   atomic.Bool
	cleanupOnce sync.Once
}

// NewApp creates the main window on fyneApp. Nothing is shown or loaded
// until Start is called.
func NewApp(fyneApp fyne.App, deps Deps) *App {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	a := &App{
		fyneApp:   fyneApp,
		window:    fyneApp.NewWindow("Cameras"),
		cfg:       cfg,
		reg:       deps.Registry,
		factory:   deps.Factory,
		observer:  deps.Observer,
		sampler:   deps.Sampler,
		prober:    deps.Prober,
		log:       deps.Logger.With().Str("component", "ui").Logger(),
		router:    nav.NewRouter(nav.ListRoute{}),
		selection: selection.New(),
	}
	if a.sampler == nil {
		a.sampler = perf.NewMonitor()
	}
	if a.prober == nil {
		a.prober = probe.Probe
	}

	policy, err := nav.ParseEmptySelectionPolicy(cfg.EmptySelection)
	if err != nil {
		a.log.Warn().Err(err).Msg("using the default empty selection policy")
	}
	a.policy = policy

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.window.Resize(fyne.NewSize(900, 600))
	a.window.SetOnClosed(a.cleanup)
	return a
}

// Router returns the route stack driving the window content.
func (a *App) Router() *nav.Router { return a.router }

// Window returns the main window.
func (a *App) Window() fyne.Window { return a.window }

// setupUI migrates legacy data, seeds the default camera and shows the
// list screen. Later route changes re-render through the router.
func (a *App) setupUI() {
	ctx := context.Background()

	if report, err := a.reg.MigrateLegacy(ctx, a.cfg.LegacyKey); err != nil {
		a.log.Warn().Err(err).Msg("legacy camera list not migrated")
	} else if len(report.Migrated) > 0 || len(report.Skipped) > 0 {
		a.log.Info().Int("migrated", len(report.Migrated)).Int("skipped", len(report.Skipped)).Msg("legacy camera list migrated")
	}
	if _, err := a.reg.EnsureDefault(ctx); err != nil {
		a.log.Warn().Err(err).Msg("default camera not seeded")
	}

	a.list = newListScreen(a)
	a.router.OnChange(func(from, to nav.Route) {
		a.log.Debug().Str("from", from.Name()).Str("to", to.Name()).Msg("route change")
		a.render(to)
	})
	a.render(a.router.Current())
}

// Start shows the list screen, pushes routes on top of it, and runs the
// event loop until the window closes.
func (a *App) Start(routes ...nav.Route) {
	a.setupUI()
	for _, r := range routes {
		a.router.Push(r)
	}
	a.window.ShowAndRun()
}

// render swaps the window content for route. The view being left is
// stopped first, which also ends its selection session.
func (a *App) render(route nav.Route) {
	a.mu.Lock()
	prev := a.active
	a.active = nil
	a.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	switch r := route.(type) {
	case nav.ListRoute:
		a.list.reload()
		a.window.SetTitle("Cameras")
		a.window.SetContent(a.list.content)

	case nav.CameraRoute:
		a.window.SetTitle("Camera View")
		v := newStreamView(a, "Viewing Camera: "+r.Camera.DeviceName, []camera.Record{r.Camera}, false, "")
		a.show(v)

	case nav.SelectionRoute:
		a.window.SetTitle("Multi Camera View")
		mv := nav.ResolveMultiView(r.Session, a.reg.Load(context.Background()), a.policy)
		if mv.Placeholder {
			a.log.Info().Str("session", r.Session.ID()).Msg("multi view with no cameras")
			a.window.SetContent(a.placeholder("No cameras selected"))
			return
		}
		if mv.FellBack {
			a.log.Info().Int("cameras", mv.Session.Len()).Msg("empty selection, showing every camera")
		}
		title := fmt.Sprintf("Viewing %d cameras", mv.Session.Len())
		if mv.Session.Len() == 1 {
			title = "Viewing 1 camera"
		}
		a.show(newStreamView(a, title, mv.Session.Cameras(), true, mv.Session.ID()))

	default:
		a.log.Error().Str("route", route.Name()).Msg("unknown route")
	}
}

func (a *App) show(v *streamView) {
	a.mu.Lock()
	a.active = v
	a.mu.Unlock()

	a.window.SetContent(v.content)
	v.start(a.ctx)
}

func (a *App) placeholder(text string) fyne.CanvasObject {
	back := widget.NewButton("Back", func() { a.router.Back() })
	msg := widget.NewLabelWithStyle(text, fyne.TextAlignCenter, fyne.TextStyle{Italic: true})
	return container.NewBorder(container.NewHBox(back), nil, nil, nil, container.NewCenter(msg))
}

// activeView returns the view currently playing, if any.
func (a *App) activeView() *streamView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// toggleNightMode flips night rendering for every view.
func (a *App) toggleNightMode() {
	enabled := !a.nightMode.Load()
	a.nightMode.Store(enabled)
	a.log.Info().Bool("enabled", enabled).Msg("night mode")
}

// cleanup stops the active view and quits. Safe to call more than once.
func (a *App) cleanup() {
	a.cleanupOnce.Do(func() {
		a.log.Info().Msg("cleanup: stopping all streams")
		a.mu.Lock()
		v := a.active
		a.active = nil
		a.mu.Unlock()
		if v != nil {
			v.stop()
		}
		a.cancel()
		a.log.Info().Msg("cleanup: complete")
		a.fyneApp.Quit()
	})
}

// Cleanup is exported for signal handlers in main.
func (a *App) Cleanup() {
	a.cleanup()
}
