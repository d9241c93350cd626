// Package shutdown runs a callback when the process is asked to terminate.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
)

// Watch calls fn once when a termination signal arrives. The returned stop
// func unregisters the handler; fn is not called after it returns.
func Watch(fn func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ch:
			fn()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
			<-exited
		})
	}
}
