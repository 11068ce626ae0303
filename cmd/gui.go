package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/nav"
	"camera-viewer-go/internal/selection"
	"camera-viewer-go/internal/ui"
)

func newViewCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view [NAME...]",
		Short: "Open the viewer directly on one or more cameras",
		Long: `With one name the single camera view opens, with several the multi
camera view. Without names the multi view follows view.empty_selection.`,
		Example: `  camera-viewer view "Front Door"
  camera-viewer view Porch Garage Driveway`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(o, true, args)
		},
	}
}

// runGUI opens the window and blocks until it closes. With view set the
// window opens straight on the named cameras.
func runGUI(o *rootOptions, view bool, names []string) error {
	e, err := o.newEnv(true)
	if err != nil {
		return err
	}
	defer e.close()
	log := e.log.With().Str("component", "main").Logger()

	var routes []nav.Route
	if view {
		route, err := viewRoute(context.Background(), e, names)
		if err != nil {
			return err
		}
		routes = append(routes, route)
	}

	factory, err := e.cfg.PlayerFactory(e.log)
	if err != nil {
		return errors.Annotate(err, "player backend")
	}

	log.Info().Str("version", o.info.Version).
		Str("player", e.cfg.PlayerBackend).
		Str("storage", e.cfg.StorageBackend).
		Int("fps", e.cfg.PlayerFPS).
		Bool("dynamic_fps", e.cfg.DynamicFPSEnabled).
		Msg("camera viewer starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := e.metrics.Serve(ctx, e.cfg.MetricsListen, e.log); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	a := ui.NewApp(e.fyneApp, ui.Deps{
		Config:   e.cfg,
		Registry: e.reg,
		Factory:  factory,
		Observer: e.metrics,
		Logger:   e.log,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("received signal, cleaning up")
			a.Cleanup()
		case <-ctx.Done():
		}
	}()

	a.Start(routes...)
	a.Cleanup()
	return nil
}

// viewRoute resolves names against the registry. One name opens the single
// view; none or several open the multi view in the given order.
func viewRoute(ctx context.Context, e *env, names []string) (nav.Route, error) {
	if _, err := e.reg.EnsureDefault(ctx); err != nil {
		e.log.Warn().Err(err).Msg("default camera not seeded")
	}

	records := make([]camera.Record, 0, len(names))
	for _, name := range names {
		rec, err := e.reg.Get(ctx, name)
		if err != nil {
			return nil, errors.Annotatef(err, "camera %q", name)
		}
		records = append(records, rec)
	}
	if len(records) == 1 {
		return nav.CameraRoute{Camera: records[0]}, nil
	}
	return nav.SelectionRoute{Session: selection.NewSession(records)}, nil
}
