package transcriber

import (
	"context"
	"errors"
	"net/http"
	"time"

	"polyglot/audio"
	"polyglot/log"
)

// EngineID names one registered engine. The set is closed: every value below
// has exactly one implementation.
type EngineID string

const (
	Local         EngineID = "LOCAL"
	CloudGemini   EngineID = "CLOUD_GEMINI"
	CloudOpenAI   EngineID = "CLOUD_OPENAI"
	CloudGroq     EngineID = "CLOUD_GROQ"
	CloudDeepgram EngineID = "CLOUD_DEEPGRAM"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrEngineCallFailed     = errors.New("engine call failed")
	ErrEngineNotFound       = errors.New("engine not found")
	ErrMissingCredential    = errors.New("missing credential")
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text string
	// Confidence is in [0, 1]; zero means the engine did not report one.
	Confidence float64
	EngineUsed EngineID
	// DurationMs covers the network round trip only.
	DurationMs int64
	Metrics    *NetworkMetrics
	RateLimit  string
}

// Engine turns a finished clip into text.
type Engine interface {
	ID() EngineID
	Name() string
	Description() string
	// IsAvailable reports whether Transcribe can be attempted. It performs
	// no I/O.
	IsAvailable() bool
	Transcribe(ctx context.Context, clip audio.Clip) (*Result, error)
}

// Descriptor is a static snapshot of an engine for display.
type Descriptor struct {
	ID          EngineID
	Name        string
	Description string
	Available   bool
}

func Describe(e Engine) Descriptor {
	return Descriptor{
		ID:          e.ID(),
		Name:        e.Name(),
		Description: e.Description(),
		Available:   e.IsAvailable(),
	}
}

// Error carries a short user-facing message. errors.Is matches its Kind; the
// underlying cause is kept for diagnostics only.
type Error struct {
	Kind   error
	Engine EngineID
	Msg    string
	cause  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func (e *Error) Cause() error { return e.cause }

// callFailed logs cause and returns the uniform failure for a cloud engine.
func callFailed(id EngineID, name string, cause error) error {
	log.DispatchError(string(id), cause)
	return &Error{
		Kind:   ErrEngineCallFailed,
		Engine: id,
		Msg:    "failed to transcribe with " + name,
		cause:  cause,
	}
}

func missingCredential(id EngineID, envVar string) error {
	return &Error{
		Kind:   ErrMissingCredential,
		Engine: id,
		Msg:    "no API key configured for " + string(id) + "; set " + envVar,
	}
}

// Options configures a cloud engine. Zero values select the engine defaults.
type Options struct {
	APIKey   string
	Model    string
	Endpoint string
	Language string
}

type baseEngine struct {
	client   *TracedClient
	apiKey   string
	model    string
	endpoint string
	lang     string
}

func newBase(opts Options, model, endpoint string) baseEngine {
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint
	}
	return baseEngine{
		client:   NewTracedClient(),
		apiKey:   opts.APIKey,
		model:    model,
		endpoint: endpoint,
		lang:     opts.Language,
	}
}

func (b *baseEngine) IsAvailable() bool { return b.apiKey != "" }

// Warm opens a connection to the engine endpoint ahead of the first request.
func (b *baseEngine) Warm() { b.client.WarmConnection(b.endpoint) }

func logMetrics(id EngineID, clip audio.Clip, r *Result) {
	m := log.DispatchMetrics{
		Engine:     string(id),
		MimeType:   clip.MimeType(),
		ClipKB:     float64(clip.Len()) / 1024,
		TotalMs:    float64(r.DurationMs),
		Confidence: r.Confidence,
	}
	if r.Metrics != nil {
		m.DNSTimeMs = float64(r.Metrics.DNS.Milliseconds())
		m.TLSTimeMs = float64(r.Metrics.TLS.Milliseconds())
		m.TTFBMs = float64(r.Metrics.TTFB.Milliseconds())
		m.ConnReused = r.Metrics.ConnReused
		m.TLSProto = r.Metrics.TLSProtocol
	}
	log.Dispatch(m)
}
