package config

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/rs/zerolog"
)

// =============================================================================
// Rotating File Writer
// =============================================================================

// RotatingFileWriter implements io.Writer with log rotation by file size.
// When the current file would exceed maxBytes it is rotated to .1, .2, and
// so on, keeping at most backupCount old files.
type RotatingFileWriter struct {
	mu          sync.Mutex
	path        string
	maxBytes    int
	backupCount int
	file        *os.File
	currentSize int64
}

// NewRotatingFileWriter creates a new rotating file writer.
// maxBytes <= 0 disables rotation (single unbounded file).
func NewRotatingFileWriter(path string, maxBytes, backupCount int) (*RotatingFileWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Annotate(err, "config: create log dir")
		}
	}

	rw := &RotatingFileWriter{
		path:        path,
		maxBytes:    maxBytes,
		backupCount: backupCount,
	}
	if err := rw.openFile(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingFileWriter) openFile() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Annotate(err, "config: open log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Trace(err)
	}
	rw.file = f
	rw.currentSize = info.Size()
	return nil
}

// Write writes p to the current log file, rotating first if the write
// would exceed maxBytes.
func (rw *RotatingFileWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.maxBytes > 0 && rw.currentSize > 0 && rw.currentSize+int64(len(p)) > int64(rw.maxBytes) {
		rw.rotate()
	}
	if rw.file == nil {
		return 0, errors.New("config: log file unavailable")
	}

	n, err := rw.file.Write(p)
	rw.currentSize += int64(n)
	return n, err
}

// Close closes the underlying file.
func (rw *RotatingFileWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

// rotate shifts file -> file.1 -> file.2 ... and reopens a fresh file.
func (rw *RotatingFileWriter) rotate() {
	rw.file.Close()
	rw.file = nil

	for i := rw.backupCount; i > 0; i-- {
		src := rw.path
		if i > 1 {
			src = fmt.Sprintf("%s.%d", rw.path, i-1)
		}
		dst := fmt.Sprintf("%s.%d", rw.path, i)
		os.Remove(dst)
		os.Rename(src, dst)
	}

	if err := rw.openFile(); err != nil {
		// The logger writes through us, so stderr is the only place left.
		fmt.Fprintf(os.Stderr, "config: failed to reopen log file after rotation: %v\n", err)
	}
}

// =============================================================================
// ConfigureLogging
// =============================================================================

// ParseLevel maps the INI level names (DEBUG, INFO, WARNING, ERROR,
// CRITICAL, plus zerolog's own names) to a zerolog level. Unknown names
// mean info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	}
	return zerolog.InfoLevel
}

// ConfigureLogging builds the application logger: JSON lines into the
// rotating log file and, optionally, a console writer on stdout. The
// standard library logger (used by fyne) is routed into the same sinks.
//
// Returns a cleanup function that should be called on shutdown.
func ConfigureLogging(cfg *Config) (zerolog.Logger, func(), error) {
	var writers []io.Writer
	var closers []io.Closer
	var setupErr error

	if cfg.LogFile != "" {
		rw, err := NewRotatingFileWriter(cfg.LogFile, cfg.LogMaxBytes, cfg.LogBackupCount)
		if err != nil {
			setupErr = errors.Annotate(err, "config: file logging disabled")
		} else {
			writers = append(writers, rw)
			closers = append(closers, rw)
		}
	}

	if cfg.LogToStdout || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.LogLevel)).
		With().Timestamp().Logger()

	stdlog.SetFlags(0)
	stdlog.SetOutput(logger.With().Str("component", "stdlog").Logger())

	cleanup := func() {
		stdlog.SetOutput(os.Stderr)
		for _, c := range closers {
			c.Close()
		}
	}
	return logger, cleanup, setupErr
}
