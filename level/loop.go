package level

import "sync"

// Source fans out PCM buffers; audio.Handle satisfies it.
type Source interface {
	Subscribe(fn func(pcm []byte)) (unsubscribe func())
}

// Handle is a running analysis loop.
type Handle struct {
	cadence     Cadence
	unsubscribe func()
	done        chan struct{}
	exited      chan struct{}

	emitMu  sync.Mutex
	stopped bool
	once    sync.Once
}

// Start subscribes a fresh Analyzer to src and calls onFrame on every cadence
// tick until Stop.
func Start(src Source, cadence Cadence, onFrame func(Frame)) *Handle {
	a := NewAnalyzer()
	h := &Handle{
		cadence: cadence,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	h.unsubscribe = src.Subscribe(a.Write)

	go func() {
		defer close(h.exited)
		for {
			select {
			case <-h.done:
				return
			case <-cadence.C():
				f := a.Frame()
				h.emitMu.Lock()
				if !h.stopped && onFrame != nil {
					onFrame(f)
				}
				h.emitMu.Unlock()
			}
		}
	}()
	return h
}

// Stop ends the loop and unsubscribes from the source. No frame is delivered
// after Stop returns. Must not be called from inside onFrame.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.emitMu.Lock()
		h.stopped = true
		h.emitMu.Unlock()
		close(h.done)
		<-h.exited
		h.unsubscribe()
		h.cadence.Stop()
	})
}
