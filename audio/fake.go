package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"

	"polyglot/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays canned PCM instead of a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// NoDevices makes Devices report an empty list.
	NoDevices bool
	// StartErr is returned from every capture's Start.
	StartErr error

	open    atomic.Int32
	maxOpen atomic.Int32
	opened  atomic.Int32

	mu   sync.Mutex
	live map[*FakeCapture]struct{}
	last *FakeCapture
}

// NewFakeContext loads 16-bit PCM from a WAV file. In realtime mode every
// started capture replays it at the capture sample rate; otherwise nothing is
// delivered until Push or Drain.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	pcm, err := decodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wavPath, err)
	}
	return NewFakeContextPCM(pcm, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime, live: make(map[*FakeCapture]struct{})}
}

// Push delivers pcm to every started capture.
func (f *FakeContext) Push(pcm []byte) {
	f.mu.Lock()
	caps := make([]*FakeCapture, 0, len(f.live))
	for c := range f.live {
		caps = append(caps, c)
	}
	f.mu.Unlock()
	for _, c := range caps {
		if cb := c.callback(); cb != nil {
			buf := make([]byte, len(pcm))
			copy(buf, pcm)
			cb(buf, uint32(len(buf)/fakeBytesPerFrame))
		}
	}
}

// AudioDone is closed once the most recently started capture has replayed
// all of its PCM. Before any capture starts it returns a closed channel.
func (f *FakeContext) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return f.last.audioDone
}

// Drain pushes the loaded PCM in capture-sized chunks.
func (f *FakeContext) Drain() {
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	for pos := 0; pos < len(f.pcm); pos += chunkBytes {
		f.Push(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
	}
}

func decodeWAV(data []byte) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf.SourceBitDepth != 0 && buf.SourceBitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", buf.SourceBitDepth)
	}
	pcm := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}
	return pcm, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	if f.NoDevices {
		return nil, nil
	}
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

// Open reports how many captures are currently started.
func (f *FakeContext) Open() int { return int(f.open.Load()) }

// MaxOpen reports the highest number of simultaneously started captures.
func (f *FakeContext) MaxOpen() int { return int(f.maxOpen.Load()) }

// Opened reports how many captures were ever started.
func (f *FakeContext) Opened() int { return int(f.opened.Load()) }

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{ctx: f, pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	ctx       *FakeContext
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	started  bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the whole PCM buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.ctx.StartErr != nil {
		return f.ctx.StartErr
	}
	f.mu.Lock()
	f.started = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.mu.Unlock()

	n := f.ctx.open.Add(1)
	f.ctx.opened.Add(1)
	for {
		cur := f.ctx.maxOpen.Load()
		if n <= cur || f.ctx.maxOpen.CompareAndSwap(cur, n) {
			break
		}
	}

	f.ctx.mu.Lock()
	f.ctx.live[f] = struct{}{}
	f.ctx.last = f
	f.ctx.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(f.feedDone)
		pos := 0
		for pos < len(f.pcm) {
			if cb := f.callback(); cb != nil {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
		close(f.audioDone)
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	f.ctx.mu.Lock()
	delete(f.ctx.live, f)
	f.ctx.mu.Unlock()

	close(stopCh)
	<-feedDone
	f.ctx.open.Add(-1)
}

func (f *FakeCapture) Close() { f.Stop() }
