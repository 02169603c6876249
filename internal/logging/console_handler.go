package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	15:04:05.000 WARN  controller [keypoints 1f0c9a2e] request failed file_name=pose.jpg
//
// The component, operation and correlation id move into the header; every
// other attribute follows as key=value.
type consoleHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level *slog.LevelVar
	attrs []slog.Attr
}

func newConsoleHandler(out io.Writer, level *slog.LevelVar) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var component, operation, correlation string
	var fields strings.Builder
	visit := func(attr slog.Attr) bool {
		value := attr.Value.Resolve()
		switch attr.Key {
		case "":
			return true
		case FieldComponent:
			component = value.String()
		case FieldOperation:
			operation = value.String()
		case FieldCorrelationID:
			correlation = value.String()
		default:
			fields.WriteByte(' ')
			fields.WriteString(attr.Key)
			fields.WriteByte('=')
			fields.WriteString(renderValue(value))
		}
		return true
	}
	for _, attr := range h.attrs {
		visit(attr)
	}
	record.Attrs(visit)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var line strings.Builder
	line.WriteString(ts.Format("15:04:05.000"))
	line.WriteByte(' ')
	line.WriteString(levelTag(record.Level))
	if component != "" {
		line.WriteByte(' ')
		line.WriteString(component)
	}
	if operation != "" || correlation != "" {
		line.WriteString(" [")
		line.WriteString(strings.TrimSpace(operation + " " + shortID(correlation)))
		line.WriteByte(']')
	}
	line.WriteByte(' ')
	line.WriteString(record.Message)
	line.WriteString(fields.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op; nothing in cloudpose logs grouped attributes.
func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

// shortID trims envelope UUIDs to their first block so headers stay narrow.
func shortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok {
		return head
	}
	return id
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quoteIfNeeded(v.String())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
	}
	return quoteIfNeeded(v.String())
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
