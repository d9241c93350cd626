package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const diagName = "diagnostics_log.txt"

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady atomic.Bool
	pid      int
	dir      string
)

// DispatchMetrics describes one transcription request.
type DispatchMetrics struct {
	Engine     string
	MimeType   string
	ClipKB     float64
	DNSTimeMs  float64
	TLSTimeMs  float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
	TLSProto   string
	Confidence float64
}

// SessionMetrics summarizes one finished recording.
type SessionMetrics struct {
	Status         string
	ElapsedS       int
	AudioLengthS   float64
	RawSizeKB      float64
	ClipKB         float64
	CompressionPct float64
	EncodeTimeMs   float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: POLYGLOT_LOG_PATH environment variable
	if envPath := os.Getenv("POLYGLOT_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(device, mimeType string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("device", device).
		Str("mime", mimeType).
		Msg("session_start")
}

func SessionEnd(m SessionMetrics) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("status", m.Status).
		Int("elapsed_s", m.ElapsedS).
		Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("clip_kb", m.ClipKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Msg("session_end")
}

// CaptureError records a failed device acquisition.
func CaptureError(err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Error().Err(err).Msg("capture_failed")
}

func Dispatch(m DispatchMetrics) {
	if !logReady.Load() {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("engine", m.Engine).
		Str("mime", m.MimeType).
		Str("conn", connStatus)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	if m.Confidence > 0 {
		ev = ev.Float64("confidence", m.Confidence)
	}
	ev.Float64("clip_kb", m.ClipKB).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("dispatch")
}

// DispatchError records the underlying cause of a failed engine call. The
// cause stays in the diagnostics log; callers only see a summary.
func DispatchError(engine string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Error().Str("engine", engine).Err(err).Msg("dispatch_failed")
}
