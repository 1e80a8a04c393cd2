package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// SetupSignalHandling cancels the returned context on the first interrupt or
// termination signal. A second signal exits the process immediately.
func SetupSignalHandling(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)

	// always handle Interrupt (portable)
	sigs := []os.Signal{os.Interrupt}

	// add Unix-only signals
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		// a host closing its end of a pipe must not kill the bridge
		signal.Ignore(syscall.SIGPIPE)
	}

	signal.Notify(sigCh, sigs...)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}

		// engine shutdown closes all connections; a second signal skips it
		s := <-sigCh
		if ss, ok := s.(syscall.Signal); ok {
			os.Exit(128 + int(ss))
		}
		os.Exit(1)
	}()

	return ctx, cancel
}
