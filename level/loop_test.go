package level

import (
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu           sync.Mutex
	fn           func([]byte)
	unsubscribed bool
}

func (s *fakeSource) Subscribe(fn func([]byte)) func() {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.fn = nil
		s.unsubscribed = true
		s.mu.Unlock()
	}
}

func (s *fakeSource) push(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fn != nil {
		s.fn(pcm)
	}
}

func TestLoopDeliversFrames(t *testing.T) {
	src := &fakeSource{}
	cadence := NewFrameCadence()
	frames := make(chan Frame, 10)
	h := Start(src, cadence, func(f Frame) { frames <- f })
	defer h.Stop()

	src.push(sine(500, 0.5, FFTSize))
	cadence.Fire()

	select {
	case f := <-frames:
		if f == (Frame{}) {
			t.Error("expected non-zero frame for a loud tone")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestStopHaltsFrames(t *testing.T) {
	src := &fakeSource{}
	cadence := NewFrameCadence()
	var mu sync.Mutex
	count := 0
	h := Start(src, cadence, func(Frame) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	h.Stop()
	h.Stop()
	if !src.unsubscribed {
		t.Error("Stop should unsubscribe from the source")
	}

	cadence.Fire()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("got %d frames after Stop", count)
	}
}

func TestFreshSmoothingPerStart(t *testing.T) {
	src := &fakeSource{}
	cadence := NewFrameCadence()
	frames := make(chan Frame, 1)

	next := func() Frame {
		cadence.Fire()
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("no frame delivered")
		}
		return Frame{}
	}

	h := Start(src, cadence, func(f Frame) { frames <- f })
	src.push(sine(500, 0.01, FFTSize))
	first := next()
	for range 20 {
		next()
	}
	h.Stop()

	h = Start(src, cadence, func(f Frame) { frames <- f })
	defer h.Stop()
	src.push(sine(500, 0.01, FFTSize))
	if again := next(); again != first {
		t.Errorf("restart frame = %v, want %v", again, first)
	}
}

func TestTickerCadence(t *testing.T) {
	c := NewTickerCadence(200)
	select {
	case <-c.C():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker cadence never fired")
	}
	c.Stop()
	c.Stop()
}
