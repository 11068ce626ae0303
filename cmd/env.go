package cmd

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"camera-viewer-go/internal/config"
	"camera-viewer-go/internal/metrics"
	"camera-viewer-go/internal/registry"
	"camera-viewer-go/internal/storage"
)

// AppID identifies the application to fyne, which keys its preferences
// store by it.
const AppID = "io.github.camera-viewer"

// env is what every command runs against: configuration, the logger and
// the camera registry over the configured store.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	reg     *registry.Registry
	fyneApp fyne.App

	closeLog func()
}

// newEnv loads configuration and opens the registry. gui creates the fyne
// app up front. CLI commands keep logs off stdout so their output stays
// parseable, and cannot use the preferences backend: fyne only guarantees
// the preferences file is written while its app runs.
func (o *rootOptions) newEnv(gui bool) (*env, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, errors.Annotate(err, "loading config")
	}
	if !gui {
		cfg.LogToStdout = false
	}

	logger, closeLog, logErr := config.ConfigureLogging(cfg)
	e := &env{
		cfg:      cfg,
		log:      logger,
		metrics:  metrics.New(),
		closeLog: closeLog,
	}
	mainLog := logger.With().Str("component", "main").Logger()
	if logErr != nil {
		mainLog.Warn().Err(logErr).Msg("logging setup")
	}

	ok, warnings := cfg.Validate()
	for _, w := range warnings {
		mainLog.Warn().Msg(w)
	}
	if !ok {
		e.close()
		return nil, errors.NotValidf("configuration (%d warnings, see log)", len(warnings))
	}

	if !gui && cfg.StorageBackend == storage.BackendPreferences {
		e.close()
		return nil, errors.NotSupportedf("storage backend %q outside the viewer window (use %q)",
			storage.BackendPreferences, storage.BackendFile)
	}

	var prefs fyne.Preferences
	if gui {
		e.fyneApp = app.NewWithID(AppID)
		prefs = e.fyneApp.Preferences()
	}

	store, err := storage.Open(cfg.StorageBackend, cfg.StorageDir, prefs)
	if err != nil {
		e.close()
		return nil, errors.Annotate(err, "opening storage")
	}

	e.reg = registry.New(store, registry.Options{
		Key:      cfg.StorageKey,
		Default:  cfg.DefaultCamera(),
		Logger:   logger,
		Observer: e.metrics,
	})
	return e, nil
}

func (e *env) close() {
	if e.closeLog != nil {
		e.closeLog()
	}
}
