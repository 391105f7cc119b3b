package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals cancels the returned context on SIGINT/SIGTERM. A second
// signal exits immediately instead of waiting for graceful teardown.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ch
		cancel()
		<-ch
		os.Exit(1)
	}()

	return ctx, cancel
}
