package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below debug and is used for per-read cache decisions.
const LevelTrace = slog.Level(-8)

const timeFormat = "2006-01-02T15:04:05.000-07:00"

var (
	level = new(slog.LevelVar)

	// Log is the process-wide logger. It writes INFO and above to stderr
	// until Init replaces the output.
	Log = slog.New(&BroadcastHandler{Handler: newTextHandler(os.Stderr)})
)

var (
	history     []string
	historyMu   sync.RWMutex
	maxHistory  = 500
	logFile     *os.File
	logFileMu   sync.Mutex
	broadcastCh chan<- string
	broadcastMu sync.RWMutex
)

func newTextHandler(w *os.File) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().Format(timeFormat))
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
					return slog.String(slog.LevelKey, "TRACE")
				}
			}
			return a
		},
	})
}

// ParseLevel maps TRACE, DEBUG, INFO, WARN and ERROR (any case) to a level.
// Unknown names map to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger
func Init(levelStr string) {
	level.Set(ParseLevel(levelStr))
	Log = slog.New(&BroadcastHandler{Handler: newTextHandler(os.Stderr)})
	slog.SetDefault(Log)
}

// SetLevel updates the logger level at runtime
func SetLevel(levelStr string) {
	level.Set(ParseLevel(levelStr))
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetFile additionally appends every record to path, creating parent
// directories as needed. An empty path closes the current file.
func SetFile(path string) error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	logFile = f
	return nil
}

// SetBroadcast sets a channel to receive formatted log lines. Lines are
// dropped when the channel is full. A nil channel stops broadcasting.
func SetBroadcast(ch chan<- string) {
	broadcastMu.Lock()
	broadcastCh = ch
	broadcastMu.Unlock()
}

// BroadcastHandler wraps a slog.Handler and also records every line in the
// history, the log file and the broadcast channel.
type BroadcastHandler struct {
	slog.Handler
}

func (h *BroadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := Format(r)

	historyMu.Lock()
	if len(history) >= maxHistory {
		history = history[1:]
	}
	history = append(history, msg)
	historyMu.Unlock()

	err := h.Handler.Handle(ctx, r)

	logFileMu.Lock()
	if logFile != nil {
		fmt.Fprintln(logFile, msg)
	}
	logFileMu.Unlock()

	broadcastMu.RLock()
	ch := broadcastCh
	broadcastMu.RUnlock()
	if ch != nil {
		select {
		case ch <- msg:
		default:
		}
	}
	return err
}

func (h *BroadcastHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BroadcastHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *BroadcastHandler) WithGroup(name string) slog.Handler {
	return &BroadcastHandler{Handler: h.Handler.WithGroup(name)}
}

// Format renders a record the way it is stored in the history.
func Format(r slog.Record) string {
	lvl := r.Level.String()
	if r.Level <= LevelTrace {
		lvl = "TRACE"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "time=%s level=%s msg=%q", r.Time.In(time.Local).Format(timeFormat), lvl, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}

// GetHistory returns the current log history
func GetHistory() []string {
	historyMu.RLock()
	defer historyMu.RUnlock()
	cp := make([]string, len(history))
	copy(cp, history)
	return cp
}

// Close closes the log file if one is open
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Helper functions for easy access
func Trace(msg string, args ...any) {
	Log.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}

// Enabled reports whether records at lvl are currently emitted.
func Enabled(lvl slog.Level) bool {
	return lvl >= level.Level()
}
