package transcriber

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"polyglot/audio"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestLocalAvailability(t *testing.T) {
	for _, tt := range []struct {
		goos string
		want bool
	}{
		{"darwin", true},
		{"windows", true},
		{"linux", false},
		{"freebsd", false},
	} {
		t.Run(tt.goos, func(t *testing.T) {
			l := &LocalEngine{goos: tt.goos}
			for range 3 {
				if got := l.IsAvailable(); got != tt.want {
					t.Fatalf("IsAvailable() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestLocalAlwaysUnsupported(t *testing.T) {
	l := NewLocal()
	for _, clip := range []audio.Clip{{}, audio.NewClip([]byte("RIFF"), "audio/wav")} {
		r, err := l.Transcribe(context.Background(), clip)
		if r != nil {
			t.Fatalf("got result %+v, want none", r)
		}
		if !errors.Is(err, ErrUnsupportedOperation) {
			t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
		}
		if !strings.Contains(err.Error(), string(CloudGemini)) {
			t.Errorf("message %q should point at the cloud engine", err.Error())
		}
	}
}

func TestErrorHidesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := callFailed(CloudGemini, "Gemini", cause)

	if !errors.Is(err, ErrEngineCallFailed) {
		t.Fatalf("err = %v, want ErrEngineCallFailed", err)
	}
	if err.Error() != "failed to transcribe with Gemini" {
		t.Errorf("message = %q", err.Error())
	}
	var e *Error
	if !errors.As(err, &e) || e.Cause() != cause || e.Engine != CloudGemini {
		t.Errorf("cause not retained: %+v", e)
	}
}

func TestDescribe(t *testing.T) {
	g := NewGemini(Options{})
	d := Describe(g)
	if d.ID != CloudGemini || d.Available {
		t.Errorf("descriptor = %+v, want unavailable CLOUD_GEMINI", d)
	}
	d = Describe(NewGemini(Options{APIKey: "k"}))
	if !d.Available {
		t.Error("engine with key should be available")
	}
	if !strings.Contains(d.Description, geminiModel) {
		t.Errorf("description %q should name the model", d.Description)
	}
}

func TestExtension(t *testing.T) {
	for _, tt := range []struct{ mime, want string }{
		{"audio/flac", "flac"},
		{"audio/webm;codecs=opus", "webm"},
		{"wav", "wav"},
		{"", "wav"},
	} {
		if got := extension(tt.mime); got != tt.want {
			t.Errorf("extension(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
