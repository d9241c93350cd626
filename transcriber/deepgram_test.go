package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"polyglot/audio"
)

func TestDeepgramTranscribe(t *testing.T) {
	var path, model, lang, auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		model = r.URL.Query().Get("model")
		lang = r.URL.Query().Get("language")
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		w.Header().Set("x-dg-ratelimit-remaining", "9")
		w.Header().Set("x-dg-ratelimit-limit", "10")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello world ","confidence":0.91}]}]}}`))
	}))
	defer srv.Close()

	d := NewDeepgram(Options{APIKey: "dg", Endpoint: srv.URL, Language: "en"})
	r, err := d.Transcribe(context.Background(), audio.NewClip([]byte("RIFF"), "audio/wav"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if r.Text != "hello world" || r.Confidence != 0.91 || r.EngineUsed != CloudDeepgram {
		t.Errorf("result = %+v", r)
	}
	if r.RateLimit != "9/10" {
		t.Errorf("RateLimit = %q", r.RateLimit)
	}
	if path != "/v1/listen" || model != deepgramModel || lang != "en" {
		t.Errorf("request %s model=%s language=%s", path, model, lang)
	}
	if auth != "Token dg" || contentType != "audio/wav" {
		t.Errorf("auth = %q content-type = %q", auth, contentType)
	}
}

func TestDeepgramFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	_, err := NewDeepgram(Options{APIKey: "dg", Endpoint: srv.URL}).Transcribe(context.Background(), audio.NewClip([]byte{1}, "audio/wav"))
	if !errors.Is(err, ErrEngineCallFailed) {
		t.Fatalf("err = %v, want ErrEngineCallFailed", err)
	}
	if _, err := NewDeepgram(Options{}).Transcribe(context.Background(), audio.Clip{}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
}
