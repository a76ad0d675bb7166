package eventtracker

import (
	"os"
	"os/signal"
	"syscall"
)

// installSignalHandling routes SIGINT and SIGTERM to stop, returning a
// function that undoes the installation. Enabled by default but made
// optional via Config.DisableSignalHandling, since installing signal
// handlers from inside a library is a global side effect on the host
// process (see DESIGN.md Open Question OQ-1).
func installSignalHandling(stop func()) (cancel func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			stop()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
