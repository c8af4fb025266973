package context

import (
	stdcontext "context"
	"os"
	"os/signal"
	"syscall"
)

// CancelOnInterrupt blocks until the process gets SIGINT or SIGTERM,
// then calls cancel. Run it in its own goroutine. A sweep that is
// cancelled keeps what it has saved and drops the unit in progress.
func CancelOnInterrupt(cancel stdcontext.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	<-signalChan
	signal.Stop(signalChan)
	cancel()
}
