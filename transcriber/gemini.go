package transcriber

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"polyglot/audio"
)

const (
	geminiEndpoint   = "https://generativelanguage.googleapis.com/"
	geminiAPIVersion = "v1beta"
	geminiModel      = "gemini-2.5-flash"

	transcribePrompt = "Transcribe the following audio accurately. Output only the transcription text, no preamble or markdown."

	// Gemini reports no per-utterance confidence for this request shape.
	geminiConfidence = 0.95
)

type Gemini struct {
	baseEngine
}

func NewGemini(opts Options) *Gemini {
	return &Gemini{baseEngine: newBase(opts, geminiModel, geminiEndpoint)}
}

func (g *Gemini) ID() EngineID { return CloudGemini }

func (g *Gemini) Name() string { return "Cloud (Gemini)" }

func (g *Gemini) Description() string {
	return "Uses Google's " + g.model + " model. High accuracy, supports multiple languages, requires an API key."
}

func (g *Gemini) newClient(ctx context.Context) (*genai.Client, error) {
	base := g.endpoint
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.client.HTTPClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base,
			APIVersion: geminiAPIVersion,
		},
	})
}

// generateConfig carries the language hint as a system instruction so the
// user prompt stays the fixed transcription instruction.
func (g *Gemini) generateConfig() *genai.GenerateContentConfig {
	if g.lang == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("The audio is in language "+g.lang+".", genai.RoleUser),
	}
}

func (g *Gemini) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	if g.apiKey == "" {
		return nil, missingCredential(CloudGemini, "GEMINI_API_KEY")
	}

	client, err := g.newClient(ctx)
	if err != nil {
		return nil, callFailed(CloudGemini, "Gemini", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(clip.Bytes(), clip.MimeType()),
			genai.NewPartFromText(transcribePrompt),
		}, genai.RoleUser),
	}

	ctx, metrics, done := g.client.Trace(ctx)
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, g.generateConfig())
	done()
	if err != nil {
		return nil, callFailed(CloudGemini, "Gemini", err)
	}

	r := &Result{
		Text:       strings.TrimSpace(resp.Text()),
		Confidence: geminiConfidence,
		EngineUsed: CloudGemini,
		DurationMs: metrics.Total.Milliseconds(),
		Metrics:    metrics,
	}
	logMetrics(CloudGemini, clip, r)
	return r, nil
}
