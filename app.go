package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"polyglot/audio"
	"polyglot/level"
	"polyglot/log"
	"polyglot/session"
	"polyglot/transcriber"
)

// errTranscribing is returned by Record while the previous clip is still
// being transcribed.
var errTranscribing = errors.New("transcription in progress")

// app owns the current recording session and routes finished clips to the
// selected engine. One session is live at a time; each Record starts a new
// one, and no new recording starts until the last clip's result is in.
type app struct {
	binding    session.Binding
	dispatcher *transcriber.Dispatcher
	containers []string
	cadence    func() level.Cadence
	sink       EventSink

	mu       sync.Mutex
	sess     *session.Session
	pending  int
	engine   transcriber.EngineID
	lastText string

	inflight sync.WaitGroup
}

func newApp(binding session.Binding, d *transcriber.Dispatcher, engine transcriber.EngineID, containers []string) *app {
	return &app{
		binding:    binding,
		dispatcher: d,
		containers: containers,
		engine:     engine,
	}
}

func (a *app) setSink(s EventSink) {
	a.mu.Lock()
	a.sink = s
	a.mu.Unlock()
}

func (a *app) currentSink() EventSink {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sink
}

// Engine returns the engine the next clip is sent to.
func (a *app) Engine() transcriber.EngineID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine
}

func (a *app) SetEngine(id transcriber.EngineID) error {
	if _, ok := a.dispatcher.Engine(id); !ok {
		return fmt.Errorf("unknown engine %q", id)
	}
	a.mu.Lock()
	a.engine = id
	a.mu.Unlock()
	return nil
}

// CycleEngine selects the next registered engine.
func (a *app) CycleEngine() transcriber.EngineID {
	ids := a.dispatcher.IDs()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(ids) == 0 {
		return a.engine
	}
	i := slices.Index(ids, a.engine)
	a.engine = ids[(i+1)%len(ids)]
	return a.engine
}

func (a *app) LastText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastText
}

// Recording reports whether a session is acquiring or recording.
func (a *app) Recording() bool {
	a.mu.Lock()
	s := a.sess
	a.mu.Unlock()
	if s == nil {
		return false
	}
	st := s.Status()
	return st == session.Acquiring || st == session.Recording
}

// Transcribing reports whether a finished clip is awaiting its result.
func (a *app) Transcribing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending > 0
}

// Record starts a new session unless one is already running. It fails with
// errTranscribing while a dispatch is outstanding.
func (a *app) Record(ctx context.Context) error {
	a.mu.Lock()
	if a.pending > 0 {
		a.mu.Unlock()
		return errTranscribing
	}
	if a.sess != nil {
		switch a.sess.Status() {
		case session.Acquiring, session.Recording, session.Stopping:
			a.mu.Unlock()
			return nil
		}
	}
	var s *session.Session
	s = session.New(session.Config{
		Binding:    a.binding,
		Containers: a.containers,
		Cadence:    a.cadence,
		OnStatus: func(st session.Status) {
			if sink := a.currentSink(); sink != nil {
				sink.Status(st, s.Err())
			}
		},
		OnTick: func(elapsed int) {
			if sink := a.currentSink(); sink != nil {
				sink.Tick(elapsed)
			}
		},
		OnFrame: func(f level.Frame) {
			if sink := a.currentSink(); sink != nil {
				sink.Frame(f)
			}
		},
		OnComplete: a.dispatch,
	})
	a.sess = s
	a.mu.Unlock()

	return s.Start(ctx)
}

// Stop ends the running session. The clip is dispatched in the background;
// Wait blocks until its result has been delivered.
func (a *app) Stop() error {
	a.mu.Lock()
	s := a.sess
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Stop()
}

// Toggle starts a session when none is running and stops it otherwise.
func (a *app) Toggle(ctx context.Context) error {
	if a.Recording() {
		return a.Stop()
	}
	return a.Record(ctx)
}

// dispatch runs from OnComplete, before Stop returns, so pending is raised
// before any later Record can look at it.
func (a *app) dispatch(clip audio.Clip) {
	a.mu.Lock()
	id := a.engine
	a.pending++
	a.mu.Unlock()

	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		r, err := a.dispatcher.Dispatch(context.Background(), clip, id)
		if err != nil {
			log.Warnf("dispatch to %s failed: %v", id, err)
		}

		a.mu.Lock()
		a.pending--
		if err == nil {
			a.lastText = r.Text
		}
		sink := a.sink
		a.mu.Unlock()

		if sink != nil {
			sink.Result(r, err)
		}
	}()
}

// Wait blocks until every dispatched clip has produced a result.
func (a *app) Wait() { a.inflight.Wait() }

// Close abandons the running session without dispatching it.
func (a *app) Close() {
	a.mu.Lock()
	s := a.sess
	a.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
