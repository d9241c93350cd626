package audio

import (
	"context"
	"fmt"
	"sync"
)

// Binding owns access to one capture device. At most one Handle is live at
// a time.
type Binding struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig

	mu   sync.Mutex
	live *Handle
}

func NewBinding(ctx Context, device *DeviceInfo, config CaptureConfig) *Binding {
	return &Binding{ctx: ctx, device: device, config: config}
}

// Acquire opens and starts the capture device. The microphone is live from a
// successful return until Release.
func (b *Binding) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.live != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: device already bound", ErrDeviceUnavailable)
	}
	h := &Handle{binding: b, subs: make(map[int]func([]byte))}
	b.live = h
	device := b.device
	b.mu.Unlock()

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		done <- result{err: h.open(b.ctx, device, b.config)}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			b.Release(h)
			return nil, r.err
		}
		return h, nil
	case <-ctx.Done():
		// The open may still finish; release once it does.
		go func() {
			<-done
			b.Release(h)
		}()
		return nil, ctx.Err()
	}
}

// Release stops and closes the handle's device. Safe to call more than once,
// with nil, or with a handle whose open failed.
func (b *Binding) Release(h *Handle) {
	if h == nil {
		return
	}
	h.release()
	b.mu.Lock()
	if b.live == h {
		b.live = nil
	}
	b.mu.Unlock()
}

// Handle is a live capture stream. PCM is signed 16-bit little-endian mono.
type Handle struct {
	binding *Binding

	devMu    sync.Mutex
	dev      CaptureDevice
	released bool

	subMu sync.RWMutex
	subs  map[int]func([]byte)
	next  int
}

func (h *Handle) open(actx Context, device *DeviceInfo, config CaptureConfig) error {
	devices, err := actx.Devices()
	if err != nil {
		return classify(fmt.Errorf("enumerating devices: %w", err))
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	}

	dev, err := actx.NewCapture(device, config)
	if err != nil {
		return classify(fmt.Errorf("opening capture device: %w", err))
	}

	h.devMu.Lock()
	defer h.devMu.Unlock()
	if h.released {
		dev.Close()
		return fmt.Errorf("%w: released while opening", ErrDeviceUnavailable)
	}
	h.dev = dev

	dev.SetCallback(h.dispatch)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		return classify(fmt.Errorf("starting capture: %w", err))
	}
	return nil
}

func (h *Handle) release() {
	h.devMu.Lock()
	defer h.devMu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if h.dev != nil {
		h.dev.Stop()
		h.dev.ClearCallback()
		h.dev.Close()
	}
}

// Active reports whether the handle still holds the device.
func (h *Handle) Active() bool {
	h.devMu.Lock()
	defer h.devMu.Unlock()
	return h.dev != nil && !h.released
}

func (h *Handle) DeviceName() string {
	h.devMu.Lock()
	defer h.devMu.Unlock()
	if h.dev == nil {
		return ""
	}
	return h.dev.DeviceName()
}

// Subscribe registers fn for every PCM buffer. Once the returned func
// returns, fn is not called again.
func (h *Handle) Subscribe(fn func(pcm []byte)) (unsubscribe func()) {
	h.subMu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subs, id)
			h.subMu.Unlock()
		})
	}
}

func (h *Handle) dispatch(data []byte, _ uint32) {
	if len(data) == 0 {
		return
	}
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	for _, fn := range h.subs {
		fn(data)
	}
}
