package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// newJSONHandler emits one object per line keyed ts/level/msg, with UTC
// millisecond timestamps and lowercase levels.
func newJSONHandler(out io.Writer, level *slog.LevelVar) slog.Handler {
	return slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	})
}
