// Package config manages configuration for Camera Viewer.
//
// Settings come from an INI file read through viper, overridden by
// CAMERA_VIEWER_<SECTION>_<KEY> environment variables, on top of the
// defaults below.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/perf"
	"camera-viewer-go/internal/player"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CAMERA_VIEWER"

// =============================================================================
// Configuration struct
// =============================================================================

// Config holds all runtime configuration values.
type Config struct {
	// Logging
	LogLevel       string
	LogFile        string
	LogMaxBytes    int
	LogBackupCount int
	LogToStdout    bool

	// Storage
	StorageBackend string // file, preferences or memory
	StorageDir     string
	StorageKey     string
	LegacyKey      string

	// Stream URI + player options
	StreamScheme  string
	StreamPath    string
	RTSPTransport string
	Autoplay      bool
	ResizeMode    string

	// Player
	PlayerBackend string // ffmpeg or pattern
	FFmpegPath    string
	PlayerFPS     int
	MaxStreams    int // 0 = no cap
	UIFPS         int

	// Reconnect
	RetryEnabled        bool
	MaxRetries          int
	RetryInitialDelayMS int
	RetryMaxDelayMS     int
	RetryStableAfterSec float64

	// View
	MultiLayout    string // grid, stack or auto
	GridColumns    int
	EmptySelection string // all or placeholder

	// Performance
	DynamicFPSEnabled   bool
	PerfCheckIntervalMS int
	MinDynamicFPS       int
	UIFPSStep           int
	CPULoadThreshold    float64
	CPUTempThresholdC   float64
	StressHoldCount     int
	RecoverHoldCount    int

	// Health
	HealthLogIntervalSec float64
	StaleFrameTimeoutSec float64

	// Default camera seeded into an empty registry
	SeedDefault       bool
	DefaultHost       string
	DefaultPort       int
	DefaultDeviceName string
	DefaultUsername   string
	DefaultPassword   string

	// Metrics
	MetricsListen string

	// ProbeTimeoutSec bounds an RTSP DESCRIBE.
	ProbeTimeoutSec float64
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "INFO",
		LogFile:        "./logs/camera_viewer.log",
		LogMaxBytes:    5 * 1024 * 1024, // 5 MB
		LogBackupCount: 3,
		LogToStdout:    true,

		StorageBackend: "file",
		StorageDir:     "",
		StorageKey:     "cameraList",
		LegacyKey:      "cameras",

		StreamScheme:  camera.DefaultScheme,
		StreamPath:    camera.DefaultPath,
		RTSPTransport: "tcp",
		Autoplay:      true,
		ResizeMode:    string(player.ResizeContain),

		PlayerBackend: player.BackendFFmpeg,
		FFmpegPath:    "ffmpeg",
		PlayerFPS:     15,
		MaxStreams:    0,
		UIFPS:         15,

		RetryEnabled:        true,
		MaxRetries:          5,
		RetryInitialDelayMS: 1000,
		RetryMaxDelayMS:     30000,
		RetryStableAfterSec: 10,

		MultiLayout:    "grid",
		GridColumns:    2,
		EmptySelection: "all",

		DynamicFPSEnabled:   true,
		PerfCheckIntervalMS: 2000,
		MinDynamicFPS:       5,
		UIFPSStep:           2,
		CPULoadThreshold:    3.0,
		CPUTempThresholdC:   75.0,
		StressHoldCount:     3,
		RecoverHoldCount:    3,

		HealthLogIntervalSec: 30,
		StaleFrameTimeoutSec: 5,

		SeedDefault:       true,
		DefaultHost:       "192.168.1.10",
		DefaultPort:       554,
		DefaultDeviceName: "Default Camera",
		DefaultUsername:   "admin",
		DefaultPassword:   "",

		MetricsListen: "",

		ProbeTimeoutSec: 5,
	}
}

// setDefaults registers every default under its "section.key" name so
// that environment overrides work for keys missing from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("logging.level", d.LogLevel)
	v.SetDefault("logging.file", d.LogFile)
	v.SetDefault("logging.max_bytes", d.LogMaxBytes)
	v.SetDefault("logging.backup_count", d.LogBackupCount)
	v.SetDefault("logging.stdout", d.LogToStdout)

	v.SetDefault("storage.backend", d.StorageBackend)
	v.SetDefault("storage.dir", d.StorageDir)
	v.SetDefault("storage.key", d.StorageKey)
	v.SetDefault("storage.legacy_key", d.LegacyKey)

	v.SetDefault("stream.scheme", d.StreamScheme)
	v.SetDefault("stream.path", d.StreamPath)
	v.SetDefault("stream.transport", d.RTSPTransport)
	v.SetDefault("stream.autoplay", d.Autoplay)
	v.SetDefault("stream.resize_mode", d.ResizeMode)

	v.SetDefault("player.backend", d.PlayerBackend)
	v.SetDefault("player.ffmpeg_path", d.FFmpegPath)
	v.SetDefault("player.fps", d.PlayerFPS)
	v.SetDefault("player.max_streams", d.MaxStreams)
	v.SetDefault("player.ui_fps", d.UIFPS)

	v.SetDefault("retry.enabled", d.RetryEnabled)
	v.SetDefault("retry.max_retries", d.MaxRetries)
	v.SetDefault("retry.initial_delay_ms", d.RetryInitialDelayMS)
	v.SetDefault("retry.max_delay_ms", d.RetryMaxDelayMS)
	v.SetDefault("retry.stable_after_sec", d.RetryStableAfterSec)

	v.SetDefault("view.multi_layout", d.MultiLayout)
	v.SetDefault("view.grid_columns", d.GridColumns)
	v.SetDefault("view.empty_selection", d.EmptySelection)

	v.SetDefault("performance.dynamic_fps", d.DynamicFPSEnabled)
	v.SetDefault("performance.perf_check_interval_ms", d.PerfCheckIntervalMS)
	v.SetDefault("performance.min_dynamic_fps", d.MinDynamicFPS)
	v.SetDefault("performance.ui_fps_step", d.UIFPSStep)
	v.SetDefault("performance.cpu_load_threshold", d.CPULoadThreshold)
	v.SetDefault("performance.cpu_temp_threshold_c", d.CPUTempThresholdC)
	v.SetDefault("performance.stress_hold_count", d.StressHoldCount)
	v.SetDefault("performance.recover_hold_count", d.RecoverHoldCount)

	v.SetDefault("health.log_interval_sec", d.HealthLogIntervalSec)
	v.SetDefault("health.stale_frame_timeout_sec", d.StaleFrameTimeoutSec)

	v.SetDefault("default_camera.seed", d.SeedDefault)
	v.SetDefault("default_camera.host", d.DefaultHost)
	v.SetDefault("default_camera.port", d.DefaultPort)
	v.SetDefault("default_camera.device_name", d.DefaultDeviceName)
	v.SetDefault("default_camera.username", d.DefaultUsername)
	v.SetDefault("default_camera.password", d.DefaultPassword)

	v.SetDefault("metrics.listen", d.MetricsListen)

	v.SetDefault("probe.timeout_sec", d.ProbeTimeoutSec)
}

// =============================================================================
// Load + Apply
// =============================================================================

// ConfigPath returns the INI file path to use, respecting env vars.
func ConfigPath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return "./config.ini"
}

// Load reads the INI file at path (or the default/env path) and returns a
// fully populated Config. A missing file is not an error; missing sections
// or keys fall back to DefaultConfig() values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("ini")
		if err := v.ReadInConfig(); err != nil {
			return fromViper(newViper()), errors.Annotatef(err, "config: failed to parse %s", path)
		}
	}
	return fromViper(v), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// fromViper maps settings onto a Config, clamping numbers into the ranges
// the rest of the program can cope with.
func fromViper(v *viper.Viper) *Config {
	d := DefaultConfig()
	cfg := &Config{
		LogLevel:       strings.ToUpper(strings.TrimSpace(v.GetString("logging.level"))),
		LogFile:        v.GetString("logging.file"),
		LogMaxBytes:    clampInt(v.GetInt("logging.max_bytes"), 1024, 0),
		LogBackupCount: clampInt(v.GetInt("logging.backup_count"), 1, 0),
		LogToStdout:    v.GetBool("logging.stdout"),

		StorageBackend: strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
		StorageDir:     v.GetString("storage.dir"),
		StorageKey:     nonEmpty(v.GetString("storage.key"), d.StorageKey),
		LegacyKey:      nonEmpty(v.GetString("storage.legacy_key"), d.LegacyKey),

		StreamScheme:  nonEmpty(strings.ToLower(v.GetString("stream.scheme")), d.StreamScheme),
		StreamPath:    nonEmpty(v.GetString("stream.path"), d.StreamPath),
		RTSPTransport: oneOf(strings.ToLower(v.GetString("stream.transport")), d.RTSPTransport, "tcp", "udp"),
		Autoplay:      v.GetBool("stream.autoplay"),
		ResizeMode:    strings.ToLower(strings.TrimSpace(v.GetString("stream.resize_mode"))),

		PlayerBackend: strings.ToLower(strings.TrimSpace(v.GetString("player.backend"))),
		FFmpegPath:    nonEmpty(v.GetString("player.ffmpeg_path"), d.FFmpegPath),
		PlayerFPS:     clampInt(v.GetInt("player.fps"), 1, 60),
		MaxStreams:    clampInt(v.GetInt("player.max_streams"), 0, 0),
		UIFPS:         clampInt(v.GetInt("player.ui_fps"), 1, 60),

		RetryEnabled:        v.GetBool("retry.enabled"),
		MaxRetries:          clampInt(v.GetInt("retry.max_retries"), 0, 100),
		RetryInitialDelayMS: clampInt(v.GetInt("retry.initial_delay_ms"), 100, 0),
		RetryMaxDelayMS:     clampInt(v.GetInt("retry.max_delay_ms"), 100, 0),
		RetryStableAfterSec: clampFloat(v.GetFloat64("retry.stable_after_sec"), 0, 0),

		MultiLayout:    strings.ToLower(strings.TrimSpace(v.GetString("view.multi_layout"))),
		GridColumns:    clampInt(v.GetInt("view.grid_columns"), 1, 8),
		EmptySelection: strings.ToLower(strings.TrimSpace(v.GetString("view.empty_selection"))),

		DynamicFPSEnabled:   v.GetBool("performance.dynamic_fps"),
		PerfCheckIntervalMS: clampInt(v.GetInt("performance.perf_check_interval_ms"), 250, 0),
		MinDynamicFPS:       clampInt(v.GetInt("performance.min_dynamic_fps"), 1, 60),
		UIFPSStep:           clampInt(v.GetInt("performance.ui_fps_step"), 1, 0),
		CPULoadThreshold:    clampFloat(v.GetFloat64("performance.cpu_load_threshold"), 0.1, 20.0),
		CPUTempThresholdC:   clampFloat(v.GetFloat64("performance.cpu_temp_threshold_c"), 30.0, 100.0),
		StressHoldCount:     clampInt(v.GetInt("performance.stress_hold_count"), 1, 0),
		RecoverHoldCount:    clampInt(v.GetInt("performance.recover_hold_count"), 1, 0),

		HealthLogIntervalSec: v.GetFloat64("health.log_interval_sec"),
		StaleFrameTimeoutSec: clampFloat(v.GetFloat64("health.stale_frame_timeout_sec"), 0.5, 0),

		SeedDefault:       v.GetBool("default_camera.seed"),
		DefaultHost:       v.GetString("default_camera.host"),
		DefaultPort:       v.GetInt("default_camera.port"),
		DefaultDeviceName: v.GetString("default_camera.device_name"),
		DefaultUsername:   v.GetString("default_camera.username"),
		DefaultPassword:   v.GetString("default_camera.password"),

		MetricsListen: strings.TrimSpace(v.GetString("metrics.listen")),

		ProbeTimeoutSec: clampFloat(v.GetFloat64("probe.timeout_sec"), 0.5, 120),
	}
	return cfg
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func oneOf(v, fallback string, allowed ...string) string {
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

// =============================================================================
// Derived settings
// =============================================================================

// URIOptions returns the stream URI settings.
func (c *Config) URIOptions() camera.URIOptions {
	return camera.URIOptions{Scheme: c.StreamScheme, Path: c.StreamPath}
}

// PlayerOptions returns the per-start player options. An unknown resize
// mode falls back to contain; Validate reports it.
func (c *Config) PlayerOptions() player.Options {
	mode, _ := player.ParseResizeMode(c.ResizeMode)
	return player.Options{Autoplay: c.Autoplay, ResizeMode: mode}
}

// PlayerFactory returns the factory for the configured player backend.
func (c *Config) PlayerFactory(logger zerolog.Logger) (player.Factory, error) {
	return player.NewFactory(c.PlayerBackend,
		player.FFmpegConfig{
			Binary:    c.FFmpegPath,
			Transport: c.RTSPTransport,
			FPS:       c.PlayerFPS,
			Logger:    logger,
		},
		player.PatternConfig{FPS: c.PlayerFPS, Logger: logger},
	)
}

// Reconnect returns the supervisor retry policy.
func (c *Config) Reconnect() player.ReconnectConfig {
	return player.ReconnectConfig{
		Enabled:       c.RetryEnabled,
		MaxRetries:    c.MaxRetries,
		RetryDelay:    time.Duration(c.RetryInitialDelayMS) * time.Millisecond,
		MaxRetryDelay: time.Duration(c.RetryMaxDelayMS) * time.Millisecond,
		StableAfter:   time.Duration(c.RetryStableAfterSec * float64(time.Second)),
	}
}

// Perf returns the adaptive FPS bounds.
func (c *Config) Perf() perf.Config {
	return perf.Config{
		Interval:      time.Duration(c.PerfCheckIntervalMS) * time.Millisecond,
		MinFPS:        c.MinDynamicFPS,
		MaxFPS:        c.PlayerFPS,
		Step:          c.UIFPSStep,
		LoadThreshold: c.CPULoadThreshold,
		TempThreshold: c.CPUTempThresholdC,
		StressHold:    c.StressHoldCount,
		RecoverHold:   c.RecoverHoldCount,
	}
}

// DefaultCamera returns the record seeded into an empty registry, or nil
// when seeding is off.
func (c *Config) DefaultCamera() *camera.Record {
	if !c.SeedDefault {
		return nil
	}
	return &camera.Record{
		Host:       c.DefaultHost,
		Port:       c.DefaultPort,
		DeviceName: c.DefaultDeviceName,
		Username:   c.DefaultUsername,
		Password:   c.DefaultPassword,
	}
}

// ProbeTimeout bounds an RTSP reachability check.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec * float64(time.Second))
}

// =============================================================================
// Validate
// =============================================================================

// Validate checks whether the Config values are reasonable and returns
// warnings. Returns ok=false if any setting is critically problematic.
func (c *Config) Validate() (ok bool, warnings []string) {
	ok = true

	switch c.StorageBackend {
	case "file", "preferences", "memory":
	default:
		ok = false
		warnings = append(warnings, fmt.Sprintf("Unknown storage backend %q", c.StorageBackend))
	}

	switch c.PlayerBackend {
	case player.BackendFFmpeg, player.BackendPattern:
	default:
		ok = false
		warnings = append(warnings, fmt.Sprintf("Unknown player backend %q", c.PlayerBackend))
	}

	if _, err := player.ParseResizeMode(c.ResizeMode); err != nil {
		warnings = append(warnings, fmt.Sprintf("Unknown resize mode %q, using contain", c.ResizeMode))
	}

	switch c.MultiLayout {
	case "grid", "stack", "auto":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown multi view layout %q, using grid", c.MultiLayout))
	}

	switch c.EmptySelection {
	case "all", "placeholder":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown empty_selection %q, showing all cameras", c.EmptySelection))
	}

	if c.MinDynamicFPS > c.PlayerFPS {
		warnings = append(warnings, fmt.Sprintf("MinDynamicFPS (%d) > PlayerFPS (%d)", c.MinDynamicFPS, c.PlayerFPS))
	}

	if c.RetryInitialDelayMS > c.RetryMaxDelayMS {
		warnings = append(warnings, fmt.Sprintf("Retry initial delay (%dms) exceeds max delay (%dms)",
			c.RetryInitialDelayMS, c.RetryMaxDelayMS))
	}

	if c.MaxStreams == 0 && c.PlayerFPS > 20 {
		warnings = append(warnings, "No stream cap with FPS > 20 may exhaust CPU with many cameras")
	}

	if c.UIFPS > c.PlayerFPS {
		warnings = append(warnings, fmt.Sprintf("UI FPS (%d) above player FPS (%d) redraws unchanged frames", c.UIFPS, c.PlayerFPS))
	}

	if c.SeedDefault {
		if err := c.DefaultCamera().Validate(); err != nil {
			warnings = append(warnings, fmt.Sprintf("Default camera is invalid and will not be seeded: %v", err))
		}
	}

	return ok, warnings
}
