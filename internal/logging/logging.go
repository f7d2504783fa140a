// Package logging provides structured JSON logging with attribute truncation.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// maxAttrLen is the longest value logged for oversized attributes. Session
// buffers run to megabytes; log records must not.
const maxAttrLen = 256

// oversizedKeys are keys whose values may carry whole input buffers.
var oversizedKeys = []string{
	"fragment",
	"input",
	"source",
	"text",
}

// TruncatingHandler wraps a slog.Handler to cap oversized attribute values.
type TruncatingHandler struct {
	handler  slog.Handler
	truncate bool
}

// NewTruncatingHandler creates a new truncating handler.
func NewTruncatingHandler(handler slog.Handler, truncate bool) *TruncatingHandler {
	return &TruncatingHandler{
		handler:  handler,
		truncate: truncate,
	}
}

// Enabled implements slog.Handler.
func (h *TruncatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *TruncatingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.truncate {
		return h.handler.Handle(ctx, r)
	}

	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(h.truncateAttr(a))
		return true
	})

	return h.handler.Handle(ctx, newRecord)
}

// WithAttrs implements slog.Handler.
func (h *TruncatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.truncate {
		capped := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			capped[i] = h.truncateAttr(a)
		}
		attrs = capped
	}
	return &TruncatingHandler{
		handler:  h.handler.WithAttrs(attrs),
		truncate: h.truncate,
	}
}

// WithGroup implements slog.Handler.
func (h *TruncatingHandler) WithGroup(name string) slog.Handler {
	return &TruncatingHandler{
		handler:  h.handler.WithGroup(name),
		truncate: h.truncate,
	}
}

// truncateAttr caps an attribute's value if its key is known to carry input.
func (h *TruncatingHandler) truncateAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		capped := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			capped[i] = h.truncateAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(capped...)}
	}

	key := strings.ToLower(a.Key)
	for _, oversized := range oversizedKeys {
		if key == oversized {
			if s := a.Value.String(); len(s) > maxAttrLen {
				return slog.String(a.Key, s[:maxAttrLen]+"...[truncated]")
			}
			return a
		}
	}

	return a
}

// Setup initializes the global logger with the given level and truncation setting.
func Setup(level string, truncate bool) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	handler := NewTruncatingHandler(jsonHandler, truncate)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
