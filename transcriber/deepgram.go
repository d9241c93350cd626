package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"polyglot/audio"
)

const (
	deepgramEndpoint = "https://api.deepgram.com"
	deepgramModel    = "nova-3"
)

type Deepgram struct {
	baseEngine
}

func NewDeepgram(opts Options) *Deepgram {
	return &Deepgram{baseEngine: newBase(opts, deepgramModel, deepgramEndpoint)}
}

func (d *Deepgram) ID() EngineID { return CloudDeepgram }

func (d *Deepgram) Name() string { return "Cloud (Deepgram)" }

func (d *Deepgram) Description() string {
	return "Uses Deepgram " + d.model + ". Reports per-utterance confidence, requires an API key."
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) listenURL() string {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	} else {
		q.Set("detect_language", "true")
	}
	return strings.TrimRight(d.endpoint, "/") + "/v1/listen?" + q.Encode()
}

func (d *Deepgram) Transcribe(ctx context.Context, clip audio.Clip) (*Result, error) {
	if d.apiKey == "" {
		return nil, missingCredential(CloudDeepgram, "DEEPGRAM_API_KEY")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.listenURL(), bytes.NewReader(clip.Bytes()))
	if err != nil {
		return nil, callFailed(CloudDeepgram, "Deepgram", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", clip.MimeType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, callFailed(CloudDeepgram, "Deepgram", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, callFailed(CloudDeepgram, "Deepgram", fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body)))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, callFailed(CloudDeepgram, "Deepgram", fmt.Errorf("deepgram response parse error: %w", err))
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	r := &Result{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
		EngineUsed: CloudDeepgram,
		DurationMs: resp.Metrics.Total.Milliseconds(),
		Metrics:    resp.Metrics,
		RateLimit:  remaining + "/" + limit,
	}
	logMetrics(CloudDeepgram, clip, r)
	return r, nil
}
