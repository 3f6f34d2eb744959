package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/roach88/appsim/internal/config"
)

// NewLogger builds the CLI logger. Text format uses tint, colored only
// when w is a terminal, with error attrs in red; json format uses slog's
// JSON handler.
// The level must already be valid; an unparseable level falls back to info.
func NewLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	level, err := config.ParseLevel(lc.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	color := isTerminal(w)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if !color || a.Value.Kind() != slog.KindAny {
				return a
			}
			if _, ok := a.Value.Any().(error); ok {
				return tint.Attr(9, a)
			}
			return a
		},
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
