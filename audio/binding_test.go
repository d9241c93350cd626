package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	fake := NewFakeContextPCM(make([]byte, 4096), false)
	b := NewBinding(fake, nil, CaptureConfig{SampleRate: 16000, Channels: 1})

	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !h.Active() {
		t.Error("handle should be active after Acquire")
	}
	if fake.Open() != 1 {
		t.Errorf("open captures = %d, want 1", fake.Open())
	}

	b.Release(h)
	if h.Active() {
		t.Error("handle should be inactive after Release")
	}
	if fake.Open() != 0 {
		t.Errorf("open captures = %d, want 0", fake.Open())
	}
}

func TestReleaseIdempotent(t *testing.T) {
	fake := NewFakeContextPCM(nil, false)
	b := NewBinding(fake, nil, CaptureConfig{})

	b.Release(nil)

	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b.Release(h)
	b.Release(h) // should not panic
	if fake.Open() != 0 {
		t.Errorf("open captures = %d, want 0", fake.Open())
	}
}

func TestAcquireWhileBound(t *testing.T) {
	fake := NewFakeContextPCM(nil, false)
	b := NewBinding(fake, nil, CaptureConfig{})

	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release(h)

	if _, err := b.Acquire(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("second Acquire err = %v, want ErrDeviceUnavailable", err)
	}
	if fake.MaxOpen() != 1 {
		t.Errorf("max open = %d, want 1", fake.MaxOpen())
	}

	b.Release(h)
	h2, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
	b.Release(h2)
}

func TestAcquireNoDevices(t *testing.T) {
	fake := NewFakeContextPCM(nil, false)
	fake.NoDevices = true
	b := NewBinding(fake, nil, CaptureConfig{})

	_, err := b.Acquire(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if fake.Opened() != 0 {
		t.Errorf("opened = %d, want 0", fake.Opened())
	}
}

func TestAcquireClassifiesStartErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want error
	}{
		{"permission", errors.New("Permission denied by user"), ErrPermissionDenied},
		{"access", errors.New("Access denied"), ErrPermissionDenied},
		{"busy", errors.New("device busy"), ErrDeviceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			fake := NewFakeContextPCM(nil, false)
			fake.StartErr = tt.err
			b := NewBinding(fake, nil, CaptureConfig{})

			_, err := b.Acquire(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			// A failed acquire must not leave the binding occupied.
			fake.StartErr = nil
			h, err := b.Acquire(context.Background())
			if err != nil {
				t.Fatalf("Acquire after failure: %v", err)
			}
			b.Release(h)
		})
	}
}

func TestAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBinding(NewFakeContextPCM(nil, false), nil, CaptureConfig{})
	if _, err := b.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSubscribeFanOut(t *testing.T) {
	fake := NewFakeContextPCM(nil, true)
	b := NewBinding(fake, nil, CaptureConfig{})
	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release(h)

	var a, c atomic.Int64
	unsubA := h.Subscribe(func(pcm []byte) { a.Add(int64(len(pcm))) })
	unsubC := h.Subscribe(func(pcm []byte) { c.Add(int64(len(pcm))) })

	h.dispatch(make([]byte, 10), 5)
	unsubA()
	unsubA() // second call is a no-op
	h.dispatch(make([]byte, 4), 2)
	h.dispatch(nil, 0)
	unsubC()

	if got := a.Load(); got != 10 {
		t.Errorf("subscriber A got %d bytes, want 10", got)
	}
	if got := c.Load(); got != 14 {
		t.Errorf("subscriber C got %d bytes, want 14", got)
	}
}

func TestClip(t *testing.T) {
	src := []byte{1, 2, 3}
	clip := NewClip(src, "audio/flac")
	src[0] = 9

	got := clip.Bytes()
	if got[0] != 1 {
		t.Error("clip must not alias the source slice")
	}
	got[1] = 9
	if clip.Bytes()[1] != 2 {
		t.Error("Bytes must return a copy")
	}
	if clip.Len() != 3 || clip.MimeType() != "audio/flac" {
		t.Errorf("clip = %d bytes %q", clip.Len(), clip.MimeType())
	}

	var empty Clip
	if empty.Len() != 0 || len(empty.Bytes()) != 0 {
		t.Error("zero Clip should be empty")
	}
}

func TestIsBluetooth(t *testing.T) {
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Jabra Evolve 65", true},
		{"Built-in Microphone", false},
		{"alsa_input.pci-0000_00_1f.3.analog-stereo", false},
	} {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFakeDrain(t *testing.T) {
	fake := NewFakeContextPCM(make([]byte, 5000), false)
	b := NewBinding(fake, nil, CaptureConfig{})
	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var got atomic.Int64
	calls := 0
	unsub := h.Subscribe(func(pcm []byte) { got.Add(int64(len(pcm))); calls++ })
	fake.Drain()
	unsub()
	b.Release(h)
	fake.Push(make([]byte, 10)) // nobody listening

	if got.Load() != 5000 {
		t.Errorf("delivered %d bytes, want 5000", got.Load())
	}
	if calls != 3 {
		t.Errorf("delivered in %d buffers, want 3", calls)
	}
}

func TestFakeAudioDone(t *testing.T) {
	fake := NewFakeContextPCM(make([]byte, 2048), true)
	select {
	case <-fake.AudioDone():
	default:
		t.Fatal("AudioDone should be closed before any capture starts")
	}

	b := NewBinding(fake, nil, CaptureConfig{})
	h, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Release(h)

	select {
	case <-fake.AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("realtime replay did not finish")
	}
}
