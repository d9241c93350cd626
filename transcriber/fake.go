package transcriber

import (
	"context"
	"sync"

	"polyglot/audio"
)

// Fake is an in-memory engine that records the clips it receives.
type Fake struct {
	id         EngineID
	text       string
	err        error
	confidence float64
	available  bool

	mu    sync.Mutex
	clips []audio.Clip
}

func NewFake(id EngineID, text string, err error) *Fake {
	return &Fake{id: id, text: text, err: err, available: true}
}

func (f *Fake) ID() EngineID        { return f.id }
func (f *Fake) Name() string        { return "fake " + string(f.id) }
func (f *Fake) Description() string { return "Returns canned text." }
func (f *Fake) IsAvailable() bool   { return f.available }

func (f *Fake) SetConfidence(c float64) { f.confidence = c }

func (f *Fake) Transcribe(_ context.Context, clip audio.Clip) (*Result, error) {
	f.mu.Lock()
	f.clips = append(f.clips, clip)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Result{
		Text:       f.text,
		Confidence: f.confidence,
		EngineUsed: f.id,
		Metrics:    &NetworkMetrics{},
	}, nil
}

// Clips returns every clip passed to Transcribe.
func (f *Fake) Clips() []audio.Clip {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Clip(nil), f.clips...)
}
