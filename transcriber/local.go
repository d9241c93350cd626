package transcriber

import (
	"context"
	"runtime"

	"polyglot/audio"
)

// LocalEngine stands in for the platform speech recognizer. Those recognizers
// only accept live input, so a recorded clip is always rejected.
type LocalEngine struct {
	goos string
}

func NewLocal() *LocalEngine { return &LocalEngine{goos: runtime.GOOS} }

func (l *LocalEngine) ID() EngineID { return Local }

func (l *LocalEngine) Name() string { return "Local Native" }

func (l *LocalEngine) Description() string {
	return "Uses the operating system's built-in speech recognizer. Fast and free, but only works on live audio."
}

// IsAvailable reports whether the OS ships an on-device recognizer.
func (l *LocalEngine) IsAvailable() bool {
	switch l.goos {
	case "darwin", "windows":
		return true
	}
	return false
}

func (l *LocalEngine) Transcribe(_ context.Context, _ audio.Clip) (*Result, error) {
	return nil, &Error{
		Kind:   ErrUnsupportedOperation,
		Engine: Local,
		Msg:    "native speech recognition works on live streams, not recorded clips; switch to " + string(CloudGemini) + " for file transcription",
	}
}
