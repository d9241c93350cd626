// Package session drives one microphone recording from device acquisition to
// a finished audio.Clip.
package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"polyglot/audio"
	"polyglot/encoder"
	"polyglot/level"
	"polyglot/log"
)

// ErrFinished is returned when starting a session that already ran.
var ErrFinished = errors.New("session already finished")

type Status int

const (
	Idle Status = iota
	Acquiring
	Recording
	Stopping
	Stopped
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Acquiring:
		return "Acquiring"
	case Recording:
		return "Recording"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Binding hands out exclusive access to a capture device. *audio.Binding
// implements it.
type Binding interface {
	Acquire(ctx context.Context) (*audio.Handle, error)
	Release(h *audio.Handle)
}

// RecorderFunc creates the container encoder for a session.
type RecorderFunc func(mimeType string, onChunk encoder.ChunkFunc) (encoder.Recorder, error)

type Config struct {
	Binding Binding

	// Containers is the container priority list; the first supported type
	// wins. Defaults to encoder.DefaultPriority.
	Containers  []string
	NewRecorder RecorderFunc

	// Cadence paces level frames. Defaults to a 30 fps ticker.
	Cadence func() level.Cadence
	// TickInterval is the elapsed-time step. Defaults to one second.
	TickInterval time.Duration

	OnStatus   func(Status)
	OnTick     func(elapsed int)
	OnFrame    func(level.Frame)
	OnComplete func(audio.Clip)
}

// Session is single use: once Stopped or Failed it cannot be restarted.
type Session struct {
	cfg Config

	mu            sync.Mutex
	status        Status
	err           error
	elapsed       int
	startedAt     time.Time
	mimeType      string
	discard       bool
	cancelAcquire context.CancelFunc

	handle      *audio.Handle
	unsubscribe func()
	analyzer    *level.Handle
	tickStop    chan struct{}
	tickDone    chan struct{}

	recorder   encoder.Recorder
	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error
	sampleBuf  []int16
	bufMu      sync.Mutex

	chunkMu sync.Mutex
	chunks  [][]byte
}

func New(cfg Config) *Session {
	if cfg.Containers == nil {
		cfg.Containers = encoder.DefaultPriority
	}
	if cfg.NewRecorder == nil {
		cfg.NewRecorder = encoder.New
	}
	if cfg.Cadence == nil {
		cfg.Cadence = func() level.Cadence { return level.NewTickerCadence(30) }
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Session{cfg: cfg}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Elapsed returns the number of ticks seen while Recording.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// StartedAt is when the session entered Recording; zero before that.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Err returns the error that moved the session to Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MimeType is the container chosen when recording began.
func (s *Session) MimeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mimeType
}

func (s *Session) notify(st Status) {
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

// Start binds the device and begins recording. Calling it while Acquiring or
// Recording does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case Acquiring, Recording:
		s.mu.Unlock()
		return nil
	case Stopping, Stopped, Failed:
		s.mu.Unlock()
		return ErrFinished
	}
	s.status = Acquiring
	ctx, cancel := context.WithCancel(ctx)
	s.cancelAcquire = cancel
	s.mu.Unlock()
	defer cancel()
	s.notify(Acquiring)

	h, err := s.cfg.Binding.Acquire(ctx)

	s.mu.Lock()
	if s.status != Acquiring {
		// Closed while the device was opening.
		s.mu.Unlock()
		s.cfg.Binding.Release(h)
		return ErrFinished
	}
	if err == nil {
		err = s.begin(h)
	}
	if err != nil {
		s.status = Failed
		s.err = err
		s.mu.Unlock()
		s.cfg.Binding.Release(h)
		log.CaptureError(err)
		s.notify(Failed)
		return err
	}
	s.status = Recording
	s.startedAt = time.Now()
	mime := s.mimeType
	s.mu.Unlock()

	log.SessionStart(h.DeviceName(), mime)
	s.notify(Recording)
	return nil
}

// begin wires the handle to the encoder, analyzer and ticker. Called with
// s.mu held.
func (s *Session) begin(h *audio.Handle) error {
	mime := encoder.SelectMimeType(s.cfg.Containers)
	rec, err := s.cfg.NewRecorder(mime, s.appendChunk)
	if err != nil {
		return fmt.Errorf("creating %s recorder: %w", mime, err)
	}

	s.handle = h
	s.mimeType = mime
	s.recorder = rec
	s.blockChan = make(chan []int16, 64)
	s.encodeDone = make(chan struct{})

	go func() {
		defer close(s.encodeDone)
		for block := range s.blockChan {
			if err := rec.EncodeBlock(block); err != nil && s.encodeErr == nil {
				s.encodeErr = err
			}
		}
	}()

	s.unsubscribe = h.Subscribe(s.feed)
	s.analyzer = level.Start(h, s.cfg.Cadence(), s.cfg.OnFrame)

	s.tickStop = make(chan struct{})
	s.tickDone = make(chan struct{})
	go s.tick(s.tickStop, s.tickDone)
	return nil
}

func (s *Session) tick(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.status != Recording {
				s.mu.Unlock()
				return
			}
			s.elapsed++
			elapsed := s.elapsed
			s.mu.Unlock()
			if s.cfg.OnTick != nil {
				s.cfg.OnTick(elapsed)
			}
		}
	}
}

func (s *Session) feed(pcm []byte) {
	s.bufMu.Lock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(s.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, s.sampleBuf[:encoder.BlockSize])
		s.sampleBuf = s.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	s.bufMu.Unlock()

	for _, block := range blocks {
		s.blockChan <- block
	}
}

func (s *Session) appendChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.chunkMu.Unlock()
}

// Stop flushes the encoder, releases the device and delivers the clip to
// OnComplete. It does nothing unless Recording.
func (s *Session) Stop() error {
	return s.finish(true)
}

// Close tears the session down from any state without emitting a clip.
func (s *Session) Close() {
	s.mu.Lock()
	switch s.status {
	case Idle, Acquiring:
		if s.cancelAcquire != nil {
			s.cancelAcquire()
		}
		s.status = Stopped
		s.mu.Unlock()
		s.notify(Stopped)
		return
	case Stopping:
		s.discard = true
		s.mu.Unlock()
		return
	case Recording:
		s.mu.Unlock()
		s.finish(false)
		return
	}
	s.mu.Unlock()
}

func (s *Session) finish(emit bool) error {
	s.mu.Lock()
	if s.status != Recording {
		s.mu.Unlock()
		return nil
	}
	s.status = Stopping
	s.discard = !emit
	s.mu.Unlock()
	s.notify(Stopping)

	close(s.tickStop)
	<-s.tickDone

	// No feed is running once unsubscribe returns.
	s.unsubscribe()
	err := s.flush()
	s.analyzer.Stop()
	s.cfg.Binding.Release(s.handle)

	s.chunkMu.Lock()
	clip := audio.NewClip(bytes.Join(s.chunks, nil), s.mimeType)
	s.chunkMu.Unlock()

	s.mu.Lock()
	if err != nil {
		s.status = Failed
		s.err = err
	} else {
		s.status = Stopped
	}
	status, elapsed, discard := s.status, s.elapsed, s.discard
	s.mu.Unlock()

	log.SessionEnd(s.metrics(status, elapsed, clip.Len()))
	s.notify(status)
	if err != nil {
		return err
	}
	if !discard && s.cfg.OnComplete != nil {
		s.cfg.OnComplete(clip)
	}
	return nil
}

// metrics reports encoder statistics for the session_end entry. Called
// after the encoder has been closed.
func (s *Session) metrics(status Status, elapsed, clipBytes int) log.SessionMetrics {
	frames := s.recorder.TotalFrames()
	raw := float64(frames) * encoder.Channels * 2
	m := log.SessionMetrics{
		Status:       status.String(),
		ElapsedS:     elapsed,
		AudioLengthS: float64(frames) / encoder.SampleRate,
		RawSizeKB:    raw / 1024,
		ClipKB:       float64(clipBytes) / 1024,
		EncodeTimeMs: float64(s.recorder.EncodeTime().Microseconds()) / 1000,
	}
	if raw > 0 {
		m.CompressionPct = 100 * (1 - float64(clipBytes)/raw)
	}
	return m
}

func (s *Session) flush() error {
	s.bufMu.Lock()
	if len(s.sampleBuf) > 0 {
		partial := make([]int16, len(s.sampleBuf))
		copy(partial, s.sampleBuf)
		s.sampleBuf = nil
		s.blockChan <- partial
	}
	s.bufMu.Unlock()

	close(s.blockChan)
	<-s.encodeDone

	if s.encodeErr != nil {
		s.recorder.Close()
		return fmt.Errorf("encoding audio: %w", s.encodeErr)
	}
	if err := s.recorder.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", s.mimeType, err)
	}
	return nil
}
