package transcriber

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"polyglot/audio"
)

// Dispatcher maps engine ids to engines and forwards clips to them. There is
// no fallback: a failing engine's error is returned as is.
type Dispatcher struct {
	mu      sync.RWMutex
	order   []EngineID
	engines map[EngineID]Engine
	tracer  trace.Tracer
}

// NewDispatcher registers engines in the given order.
func NewDispatcher(engines ...Engine) *Dispatcher {
	d := &Dispatcher{
		engines: make(map[EngineID]Engine),
		tracer:  otel.Tracer("polyglot/transcriber"),
	}
	for _, e := range engines {
		d.Register(e)
	}
	return d
}

// Register adds e, replacing any engine with the same id in place.
func (d *Dispatcher) Register(e Engine) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := e.ID()
	if _, ok := d.engines[id]; !ok {
		d.order = append(d.order, id)
	}
	d.engines[id] = e
}

func (d *Dispatcher) Engine(id EngineID) (Engine, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.engines[id]
	return e, ok
}

// IDs returns registered ids in registration order.
func (d *Dispatcher) IDs() []EngineID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]EngineID(nil), d.order...)
}

func (d *Dispatcher) Descriptors() []Descriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Descriptor, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, Describe(d.engines[id]))
	}
	return out
}

// Dispatch sends clip to the engine registered under id.
func (d *Dispatcher) Dispatch(ctx context.Context, clip audio.Clip, id EngineID) (*Result, error) {
	ctx, span := d.tracer.Start(ctx, "transcriber.Dispatch", trace.WithAttributes(
		attribute.String("engine", string(id)),
		attribute.String("mime_type", clip.MimeType()),
		attribute.Int("clip_bytes", clip.Len()),
	))
	defer span.End()

	e, ok := d.Engine(id)
	if !ok {
		err := &Error{
			Kind:   ErrEngineNotFound,
			Engine: id,
			Msg:    fmt.Sprintf("engine %s not found", id),
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r, err := e.Transcribe(ctx, clip)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("duration_ms", r.DurationMs),
		attribute.Float64("confidence", r.Confidence),
	)
	return r, nil
}
