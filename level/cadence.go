package level

import (
	"sync"
	"time"
)

// Cadence paces analysis. A tick that arrives while the previous frame is
// still being handled is dropped.
type Cadence interface {
	C() <-chan struct{}
	Stop()
}

// FrameCadence is driven by the renderer calling Fire once per redraw.
type FrameCadence struct {
	ch chan struct{}
}

func NewFrameCadence() *FrameCadence {
	return &FrameCadence{ch: make(chan struct{}, 1)}
}

func (c *FrameCadence) Fire() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

func (c *FrameCadence) C() <-chan struct{} { return c.ch }

// Stop is a no-op; the renderer keeps firing across sessions.
func (c *FrameCadence) Stop() {}

type tickerCadence struct {
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

// NewTickerCadence fires fps times a second until stopped.
func NewTickerCadence(fps int) Cadence {
	if fps <= 0 {
		fps = 30
	}
	c := &tickerCadence{ch: make(chan struct{}, 1), done: make(chan struct{})}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				select {
				case c.ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return c
}

func (c *tickerCadence) C() <-chan struct{} { return c.ch }

func (c *tickerCadence) Stop() { c.once.Do(func() { close(c.done) }) }
