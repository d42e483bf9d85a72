package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const serviceName = "calltrack"

// New returns the process logger writing to stdout.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(os.Stdout, appEnv)
}

// NewWithWriter builds the logger for an environment. local gets readable
// text at debug level, dev gets JSON at debug, everything else JSON at info.
func NewWithWriter(w io.Writer, appEnv string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	switch appEnv {
	case "local":
		opts.Level = slog.LevelDebug
		h = slog.NewTextHandler(w, opts)
	case "dev":
		opts.Level = slog.LevelDebug
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", serviceName, "env", appEnv)
}

type ctxKey struct{}

func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request logger, or slog.Default() outside a request.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
