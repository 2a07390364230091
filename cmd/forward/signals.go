package forward

import (
	"os"
)

// handleSignals turns the first signal into a graceful stop and the second into an abort.
// It returns once done is closed.
func handleSignals(signals <-chan os.Signal, done <-chan struct{}, stop, abort func()) {
	received := 0
	for {
		select {
		case <-done:
			return
		case sig := <-signals:
			received++
			if received == 1 {
				log.Infof("Received %s, sending queued commands before exit (repeat to abort)", sig)
				stop()
				continue
			}
			log.Warningf("Received %s again, aborting, queued commands are dropped", sig)
			abort()
			return
		}
	}
}
