package signalctx

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WithInterrupt returns a context canceled on SIGINT or SIGTERM so that an
// in-flight remote call is abandoned instead of hanging the workflow.
// stop releases the signal handler.
func WithInterrupt(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-c:
			slog.Warn("interrupted, abandoning current operation", "signal", sig.String())
			cancel()
		}
	}()

	return ctx, func() {
		signal.Stop(c)
		cancel()
	}
}
