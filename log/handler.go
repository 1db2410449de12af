// Package log builds slog handlers for capkit processes. Records logged with
// a context that carries a run context are stamped with its identifiers.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/reglet-dev/capkit/runctx"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	format    string
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		format: FormatJSON,
		level:  slog.LevelInfo,
	}
}

// WithLevel sets the minimum level to report. A *slog.LevelVar may be passed
// to change the level at runtime.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithFormat selects FormatJSON or FormatText.
func WithFormat(format string) HandlerOption {
	return func(c *handlerConfig) {
		c.format = format
	}
}

// NewHandler creates a context-aware handler writing to w.
func NewHandler(w io.Writer, opts ...HandlerOption) slog.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}
	var inner slog.Handler
	if cfg.format == FormatText {
		inner = slog.NewTextHandler(w, hopts)
	} else {
		inner = slog.NewJSONHandler(w, hopts)
	}
	return NewContextHandler(inner)
}

// New is shorthand for slog.New(NewHandler(w, opts...)).
func New(w io.Writer, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(w, opts...))
}

// ParseLevel parses a level name such as "debug" or "WARN+2". Unknown names
// yield an error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ContextHandler adds run identifiers found in the record's context. Keys
// already bound through WithAttrs are not repeated.
type ContextHandler struct {
	inner slog.Handler
	bound map[string]bool
	group bool
}

// NewContextHandler wraps inner.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner, bound: map[string]bool{}}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.group && ctx != nil {
		for _, a := range contextAttrs(ctx) {
			if !h.bound[a.Key] {
				record.AddAttrs(a)
			}
		}
	}
	return h.inner.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	if !h.group {
		for _, a := range attrs {
			bound[a.Key] = true
		}
	}
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), bound: bound, group: h.group}
}

// WithGroup implements slog.Handler. Identifiers are not added inside groups.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), bound: h.bound, group: true}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if rc, ok := runctx.FromContext(ctx); ok {
		attrs := make([]slog.Attr, 0, 4)
		for _, a := range rc.LogAttrs() {
			attrs = append(attrs, a.(slog.Attr))
		}
		return attrs
	}
	if id := runctx.TraceIDFromContext(ctx); id != "" {
		return []slog.Attr{slog.String("trace_id", id)}
	}
	return nil
}

// ForRun returns logger bound to the identifiers of rc plus attrs.
func ForRun(logger *slog.Logger, rc *runctx.RunContext, attrs ...any) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(append(rc.LogAttrs(), attrs...)...)
}
