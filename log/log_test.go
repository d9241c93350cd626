package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("POLYGLOT_LOG_PATH", "/tmp/polyglot-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/polyglot-env-log" {
		t.Errorf("got %q, want /tmp/polyglot-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("POLYGLOT_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "polyglot") {
		t.Errorf("default directory %q should be app-specific", got)
	}
}

func TestInitCreatesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(tmp, diagName)); err != nil {
		t.Errorf("%s not created: %v", diagName, err)
	}
	// Transcripts are never persisted.
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 1 {
		t.Errorf("log dir has %d files, want 1", len(entries))
	}
}

func TestDispatchLogsCauseNotText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Dispatch(DispatchMetrics{Engine: "CLOUD_GEMINI", MimeType: "audio/flac", TotalMs: 120, Confidence: 0.95})
	DispatchError("CLOUD_GEMINI", errors.New("status 503"))
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, diagName))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"dispatch", "engine=CLOUD_GEMINI", "confidence=0.95", "dispatch_failed", "status 503"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, out)
		}
	}
}

func TestSessionEndLogsEncodeStats(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	SessionEnd(SessionMetrics{Status: "Stopped", ElapsedS: 2, AudioLengthS: 2, RawSizeKB: 62.5, ClipKB: 31.25, CompressionPct: 50, EncodeTimeMs: 4})
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, diagName))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"session_end", "status=Stopped", "audio_s=2", "compression_pct=50", "encode_ms=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, out)
		}
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	Close()
	// none of these may panic without a log file
	Info("x")
	Warnf("x %d", 1)
	SessionStart("dev", "audio/wav")
	SessionEnd(SessionMetrics{Status: "Stopped", ElapsedS: 3})
	CaptureError(errors.New("x"))
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
