package transcriber

import (
	"bytes"
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"polyglot/audio"
)

const (
	openAIEndpoint = "https://api.openai.com/v1"
	openAIModel    = "gpt-4o-transcribe"

	groqEndpoint = "https://api.groq.com/openai/v1"
	groqModel    = "whisper-large-v3-turbo"
)

// OpenAICompatible covers every engine speaking the OpenAI transcription
// API. OpenAI and Groq differ only in endpoint, model and credential.
type OpenAICompatible struct {
	baseEngine
	id     EngineID
	name   string
	envVar string
	api    *openai.Client
}

func NewOpenAI(opts Options) *OpenAICompatible {
	return newOpenAICompatible(CloudOpenAI, "Cloud (OpenAI)", "OPENAI_API_KEY", opts, openAIModel, openAIEndpoint)
}

func NewGroq(opts Options) *OpenAICompatible {
	return newOpenAICompatible(CloudGroq, "Cloud (Groq)", "GROQ_API_KEY", opts, groqModel, groqEndpoint)
}

func newOpenAICompatible(id EngineID, name, envVar string, opts Options, model, endpoint string) *OpenAICompatible {
	o := &OpenAICompatible{
		baseEngine: newBase(opts, model, endpoint),
		id:         id,
		name:       name,
		envVar:     envVar,
	}
	cfg := openai.DefaultConfig(o.apiKey)
	cfg.BaseURL = o.endpoint
	cfg.HTTPClient = o.client.HTTPClient()
	o.api = openai.NewClientWithConfig(cfg)
	return o
}

func (o *OpenAICompatible) ID() EngineID { return o.id }

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) Description() string {
	return "Uses the " + o.model + " model through an OpenAI-compatible API. Requires an API key."
}

func extension(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		mimeType = mimeType[i+1:]
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		return "wav"
	}
	return mimeType
}

func (o *OpenAICompatible) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	if o.apiKey == "" {
		return nil, missingCredential(o.id, o.envVar)
	}

	ctx, metrics, done := o.client.Trace(ctx)
	resp, err := o.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "audio." + extension(clip.MimeType()),
		Reader:   bytes.NewReader(clip.Bytes()),
		Language: o.lang,
		Format:   openai.AudioResponseFormatJSON,
	})
	done()
	if err != nil {
		return nil, callFailed(o.id, o.name, err)
	}

	r := &Result{
		Text:       strings.TrimSpace(resp.Text),
		EngineUsed: o.id,
		DurationMs: metrics.Total.Milliseconds(),
		Metrics:    metrics,
		RateLimit:  firstNonEmpty(resp.Header(), "x-ratelimit-remaining-requests") + "/" + firstNonEmpty(resp.Header(), "x-ratelimit-limit-requests"),
	}
	logMetrics(o.id, clip, r)
	return r, nil
}
