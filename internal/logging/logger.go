// Package logging provides structured logging and error reporting for the CLI and TUI.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/events"
)

// Logger writes console lines through zerolog, mirrors them as JSON to an
// optional rotating file and remembers recently reported errors.
type Logger struct {
	mu       sync.RWMutex
	zlog     zerolog.Logger
	eventBus *events.EventBus
	output   io.Writer
	file     *lumberjack.Logger
	history  *errorHistory
}

// NewLogger returns a logger printing to out. Reported errors are also
// published on eventBus when it is non-nil.
func NewLogger(out io.Writer, eventBus *events.EventBus) *Logger {
	l := &Logger{
		eventBus: eventBus,
		output:   out,
		history:  newErrorHistory(constants.ErrorHistorySize),
	}
	l.rebuild()
	return l
}

// NewDefaultCLILogger logs to stdout. Progress bars own stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stdout, nil)
}

func NewNopLogger() *Logger {
	return NewLogger(io.Discard, nil)
}

func console(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
}

// rebuild recreates zlog after a writer change. Callers hold mu.
func (l *Logger) rebuild() {
	var w io.Writer = console(l.output)
	if l.file != nil {
		w = zerolog.MultiLevelWriter(w, l.file)
	}
	l.zlog = zerolog.New(w).With().Timestamp().Logger()
}

// EnableFile additionally writes JSON log lines to a rotating file.
func (l *Logger) EnableFile(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    constants.LogFileMaxSizeMB,
		MaxBackups: constants.LogFileMaxBackups,
		MaxAge:     constants.LogFileMaxAgeDays,
		Compress:   true,
	}
	l.rebuild()
}

// SetEventBus attaches an event bus that receives error events.
func (l *Logger) SetEventBus(bus *events.EventBus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventBus = bus
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.rebuild()
	return err
}

func (l *Logger) logger() *zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	z := l.zlog
	return &z
}

func (l *Logger) Debug() *zerolog.Event { return l.logger().Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger().Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger().Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger().Error() }

// SetOutput changes the console writer for the logger.
// The TUI uses this to keep log lines from tearing the alternate screen.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.output
}

func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel converts a config value such as "debug" into a zerolog level.
// Unknown values fall back to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(console(os.Stderr))
}
