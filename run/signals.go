package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// handleSignals returns on the first termination signal. Hangups are
// forwarded to hangups without blocking; a pending one absorbs the next.
func handleSignals(ctx context.Context, hangups chan<- struct{}) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(signals)

	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				tlog.Get(ctx).Info("Received hangup, requesting reload")
				select {
				case hangups <- struct{}{}:
				default:
				}
				continue
			}
			tlog.Get(ctx).Info("Received signal, terminating", zap.Stringer("signal", sig))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
