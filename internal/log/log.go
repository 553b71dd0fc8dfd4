package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Options controls the process-wide logger.
type Options struct {
	Debug   bool
	Verbose bool
	Format  string    // text|json
	Out     io.Writer // defaults to stderr
}

// Setup installs the default slog.Logger. Level is Warn unless Verbose
// (Info) or Debug (Debug) is set.
func Setup(o Options) (*slog.Logger, error) {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelInfo
	}
	if o.Debug {
		level = slog.LevelDebug
	}
	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch o.Format {
	case "", "text":
		h = slog.NewTextHandler(out, hopts)
	case "json":
		h = slog.NewJSONHandler(out, hopts)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text|json)", o.Format)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l, nil
}
