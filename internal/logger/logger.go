package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Tag is printed in front of every console line so hook output stands out
// from the surrounding build tool output.
const Tag = "[autocommit]"

// Logger defines the logging interface used throughout the application.
// Info, Warning and Error go to the debug log file. The *ToUser methods,
// Success and StatusMessage are shown on the console as well.
type Logger interface {
	// Info logs an informational message to the debug log.
	Info(format string, args ...interface{})

	// Warning logs a warning to the debug log. It is echoed to the
	// console in verbose mode.
	Warning(format string, args ...interface{})

	// Error logs an error to the debug log and always prints it to stderr.
	Error(format string, args ...interface{})

	// InfoToUser logs an informational message and prints it to stdout.
	InfoToUser(format string, args ...interface{})

	// WarningToUser logs a warning and prints it to stdout.
	WarningToUser(format string, args ...interface{})

	// Success logs a success message and prints it to stdout.
	Success(format string, args ...interface{})

	// StatusMessage prints a status line to stdout without logging it.
	// Suppressed in quiet mode.
	StatusMessage(format string, args ...interface{})

	// Close flushes and closes the debug log file.
	Close() error
}

// DefaultLogger writes structured debug logs with zerolog and
// human-readable lines to the console.
type DefaultLogger struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	enabled bool
	logFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
}

// New creates a new Logger instance writing to the process stdout and stderr.
func New(enabled bool, logFile string, verbose bool) Logger {
	return NewWithOutput(enabled, logFile, verbose, os.Stdout, os.Stderr)
}

// NewWithOutput creates a DefaultLogger with custom output writers.
// When enabled is false, or the log file cannot be opened, nothing is
// written to disk.
func NewWithOutput(enabled bool, logFile string, verbose bool, stdout, stderr io.Writer) *DefaultLogger {
	l := &DefaultLogger{
		logger:  zerolog.Nop(),
		enabled: enabled,
		logFile: logFile,
		verbose: verbose,
		stdout:  stdout,
		stderr:  stderr,
	}

	if !enabled {
		return l
	}

	if logFile == "" {
		l.logger = newZerolog(stderr)
		return l
	}

	if logDir := filepath.Dir(logFile); logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			_, _ = fmt.Fprintf(stderr, "%s ⚠️ Failed to create log directory: %v\n", Tag, err)
		}
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger = newZerolog(stderr)
		_, _ = fmt.Fprintf(stderr, "%s ⚠️ Failed to open log file: %v, using stderr instead\n", Tag, err)
		return l
	}

	l.file = f
	l.logger = newZerolog(f)
	_, _ = fmt.Fprintf(stdout, "%s 🔍 Debug logging enabled. Logs will be written to: %s\n", Tag, logFile)
	l.logger.Info().Int("pid", os.Getpid()).Msg("autocommit debug logging started")

	return l
}

func newZerolog(w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).With().
		Timestamp().
		Str("component", "autocommit").
		Logger()
}

// Info logs an informational message (file only)
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// InfoToUser logs an informational message to both file and stdout
func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Info().Msg(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "%s ℹ️  %s\n", Tag, msg)
}

// Success logs a success message to both file and stdout
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Info().Bool("success", true).Msg(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "%s ✅ %s\n", Tag, msg)
}

// Warning logs a warning message
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Warn().Msg(msg)
	}

	if l.verbose {
		_, _ = fmt.Fprintf(l.stdout, "%s ⚠️  %s\n", Tag, msg)
	}
}

// WarningToUser logs a warning message to both file and stdout
func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Warn().Msg(msg)
	}

	_, _ = fmt.Fprintf(l.stdout, "%s ⚠️  %s\n", Tag, msg)
}

// Error logs an error message
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.logger.Error().Msg(msg)
	}

	// Errors are shown regardless of debug status
	_, _ = fmt.Fprintf(l.stderr, "%s ❌ %s\n", Tag, msg)
}

// StatusMessage prints a status message to stdout only (no logging)
func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.verbose {
		return
	}

	_, _ = fmt.Fprintf(l.stdout, "%s %s\n", Tag, fmt.Sprintf(format, args...))
}

// Close syncs and closes the log file, if one was opened.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	if err := l.file.Sync(); err != nil {
		return err
	}
	err := l.file.Close()
	l.file = nil
	l.logger = zerolog.Nop()
	return err
}

// SetStdout sets a custom writer for user-facing stdout messages only.
func (l *DefaultLogger) SetStdout(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = w
}

// SetStderr sets a custom writer for user-facing stderr messages only.
func (l *DefaultLogger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}
