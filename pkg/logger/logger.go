package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string
	Pretty bool
	Output io.Writer
}

var (
	mu     sync.RWMutex
	global = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init replaces the global logger. Safe to call more than once; the TUI calls
// it again to move output into a file.
func Init(cfg Config) {
	var w io.Writer = cfg.Output
	if w == nil {
		w = os.Stderr
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()

	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// ParseLevel maps a level name onto zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]interface{}) {
	if ev == nil {
		return
	}
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func Debug(msg string) { l := L(); emit(l.Debug(), "", msg, nil) }
func Info(msg string)  { l := L(); emit(l.Info(), "", msg, nil) }
func Warn(msg string)  { l := L(); emit(l.Warn(), "", msg, nil) }
func Error(msg string) { l := L(); emit(l.Error(), "", msg, nil) }

func DebugC(component, msg string) { l := L(); emit(l.Debug(), component, msg, nil) }
func InfoC(component, msg string)  { l := L(); emit(l.Info(), component, msg, nil) }
func WarnC(component, msg string)  { l := L(); emit(l.Warn(), component, msg, nil) }
func ErrorC(component, msg string) { l := L(); emit(l.Error(), component, msg, nil) }

// DebugCF logs msg under component with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	l := L()
	emit(l.Debug(), component, msg, fields)
}

// InfoCF logs msg under component with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	l := L()
	emit(l.Info(), component, msg, fields)
}

// WarnCF logs msg under component with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	l := L()
	emit(l.Warn(), component, msg, fields)
}

// ErrorCF logs msg under component with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	l := L()
	emit(l.Error(), component, msg, fields)
}
