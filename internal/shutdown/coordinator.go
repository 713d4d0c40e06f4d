// Package shutdown provides the stop signal shared by every component in
// a process. The signal is broadcast: once requested it stays observable
// by any number of readers, and requesting it again has no effect.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/maskpipe/maskpipe/internal/logger"
)

// Coordinator is a single-assignment stop signal. The zero value is not
// usable; construct with New.
type Coordinator struct {
	once sync.Once
	done chan struct{}
}

// New creates a coordinator with no stop requested.
func New() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// RequestStop requests shutdown. Idempotent and safe from any goroutine.
func (c *Coordinator) RequestStop() {
	c.once.Do(func() { close(c.done) })
}

// Requested reports whether a stop has been requested.
func (c *Coordinator) Requested() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once a stop has been requested.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// NotifySignals routes SIGINT/SIGTERM into the coordinator.
func (c *Coordinator) NotifySignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.WithComponent("shutdown").Info().
			Str("signal", sig.String()).
			Msg("Interrupt received, stopping")
		c.RequestStop()
	}()
}
