// Package logging sets up the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. File enables a rotated JSON log
// next to the console output.
type Options struct {
	Level      string
	Format     string // "console" or "json"
	File       string
	MaxSizeMB  int
	MaxBackups int
	Output     io.Writer // console destination, stderr when nil
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
)

// L returns the application logger, initializing a default one if needed.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(Options{Level: os.Getenv("LOG_LEVEL")})
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog's default.
func Init(opts Options) {
	lvl := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, handlerOpts)
	} else {
		console = slog.NewTextHandler(out, handlerOpts)
	}

	handlers := []slog.Handler{console}
	var fileCloser io.Closer
	if strings.TrimSpace(opts.File) != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		backups := opts.MaxBackups
		if backups <= 0 {
			backups = 3
		}
		w := &lj.Logger{Filename: opts.File, MaxSize: maxSize, MaxBackups: backups, MaxAge: 28, Compress: true}
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		fileCloser = w
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = &fanout{hs: handlers}
	}
	logger := slog.New(h).With(slog.String("app", "slidewizard"))

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	current = logger
	closer = fileCloser
	mu.Unlock()

	slog.SetDefault(logger)
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type fanout struct{ hs []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: hs}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		hs[i] = h.WithGroup(name)
	}
	return &fanout{hs: hs}
}
