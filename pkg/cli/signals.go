package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that cancel the context returned by
// SetupSignalHandler.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context derived from parent that is canceled
// on SIGINT or SIGTERM. Calling stop releases the signal registration; a
// second signal after that terminates the process as usual.
func SetupSignalHandler(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, ShutdownSignals...)
}
