package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"polyglot/audio"
	"polyglot/beep"
	"polyglot/level"
	"polyglot/session"
	"polyglot/transcriber"
)

func TestFormatElapsed(t *testing.T) {
	for _, tt := range []struct {
		sec  int
		want string
	}{
		{0, "00:00"},
		{3, "00:03"},
		{61, "01:01"},
		{3600, "60:00"},
	} {
		if got := formatElapsed(tt.sec); got != tt.want {
			t.Errorf("formatElapsed(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestRenderBars(t *testing.T) {
	for _, tt := range []struct {
		name      string
		frame     level.Frame
		recording bool
		want      int
	}{
		{"idle", level.Idle, false, 5},
		{"silent while recording", level.Frame{}, true, 0},
		{"mixed", level.Frame{100, 0, 50, 0, 0}, true, 12},
		{"full", level.Frame{100, 100, 100, 100, 100}, true, 40},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out := renderBars(tt.frame, tt.recording)
			if got := strings.Count(out, "██"); got != tt.want {
				t.Errorf("filled cells = %d, want %d", got, tt.want)
			}
			if got := strings.Count(out, "\n"); got != barHeight {
				t.Errorf("rows = %d, want %d", got, barHeight)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	for _, tt := range []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"hello world", 20, []string{"hello world"}},
		{"hello world", 5, []string{"hello", "world"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	} {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func newTestModel(t *testing.T, engines ...transcriber.Engine) (tuiModel, *app) {
	t.Helper()
	beep.Disable()
	if len(engines) == 0 {
		engines = append(engines, transcriber.NewFake(transcriber.CloudGemini, "hello world", nil))
	}
	a, _, _ := newTestApp(t, nil, engines...)
	cadence := level.NewFrameCadence()
	a.cadence = func() level.Cadence { return cadence }
	m := newTUIModel(a, cadence, 10, "mic: fake")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(tuiModel), a
}

func update(t *testing.T, m tuiModel, msgs ...tea.Msg) tuiModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(tuiModel)
	}
	return m
}

func TestModelRecordingFlow(t *testing.T) {
	m, _ := newTestModel(t)
	loud := level.Frame{90, 80, 70, 60, 50}

	m = update(t, m, frameMsg{loud})
	if m.frame != level.Idle {
		t.Error("frames must be ignored while not recording")
	}

	m = update(t, m,
		statusMsg{Status: session.Acquiring},
		statusMsg{Status: session.Recording},
		elapsedMsg{65},
		frameMsg{loud},
	)
	if m.frame != loud {
		t.Errorf("frame = %v, want %v", m.frame, loud)
	}
	view := m.View()
	if !strings.Contains(view, "REC 01:05") {
		t.Errorf("view missing timer:\n%s", view)
	}

	m = update(t, m, statusMsg{Status: session.Stopping}, statusMsg{Status: session.Stopped})
	if m.frame != level.Idle {
		t.Error("meter should return to idle after Stopped")
	}
	if !strings.Contains(m.View(), "transcribing") {
		t.Error("view should show pending transcription")
	}

	m = update(t, m, resultMsg{Result: &transcriber.Result{
		Text: "hello world", EngineUsed: transcriber.CloudGemini, Confidence: 0.95, DurationMs: 42,
	}})
	view = m.View()
	for _, want := range []string{"hello world", "CLOUD_GEMINI", "42ms", "conf 0.95", "STANDBY"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelShowsErrors(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, statusMsg{Status: session.Acquiring}, statusMsg{Status: session.Failed, Err: errors.New("microphone permission denied")})
	if !strings.Contains(m.View(), "microphone permission denied") {
		t.Error("capture failure not shown")
	}

	m = update(t, m, resultMsg{Err: errors.New("failed to transcribe with Gemini")})
	if !strings.Contains(m.View(), "failed to transcribe with Gemini") {
		t.Error("dispatch failure not shown")
	}
}

func TestModelNoVoiceWarning(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, statusMsg{Status: session.Recording})
	for i := 0; i < 30; i++ {
		m = update(t, m, frameMsg{level.Frame{}})
	}
	if !strings.Contains(m.View(), "no voice detected") {
		t.Error("expected no-voice warning after 3s of silent frames")
	}
}

func TestModelRenderTickFiresCadence(t *testing.T) {
	m, _ := newTestModel(t)

	m = update(t, m, renderTickMsg{})
	select {
	case <-m.cadence.C():
		t.Fatal("cadence fired while idle")
	default:
	}

	m = update(t, m, statusMsg{Status: session.Recording}, renderTickMsg{})
	select {
	case <-m.cadence.C():
	default:
		t.Fatal("cadence not fired while recording")
	}
}

func TestModelKeys(t *testing.T) {
	m, a := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if a.Engine() != transcriber.Local {
		t.Errorf("tab selected %s, want LOCAL", a.Engine())
	}
	if !strings.Contains(m.View(), "Local Native") {
		t.Error("engine line not updated")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd == nil {
		t.Fatal("space should return a toggle command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("toggle returned %v", msg)
	}
	if !a.Recording() {
		t.Fatal("space should start recording")
	}
	cmd()
	if a.Recording() {
		t.Fatal("second toggle should stop recording")
	}
	a.Wait()
}

func TestModelSwitchToCloudAfterLocalFailure(t *testing.T) {
	m, a := newTestModel(t)
	if err := a.SetEngine(transcriber.Local); err != nil {
		t.Fatal(err)
	}
	_, err := transcriber.NewLocal().Transcribe(context.Background(), audio.NewClip(nil, "audio/wav"))
	m = update(t, m, resultMsg{Err: err})
	if !strings.Contains(m.View(), "to use CLOUD_GEMINI") {
		t.Fatalf("view should offer the cloud engine:\n%s", m.View())
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if a.Engine() != transcriber.CloudGemini {
		t.Errorf("engine = %s, want CLOUD_GEMINI", a.Engine())
	}
	if m.err != nil {
		t.Errorf("error still shown after switching: %v", m.err)
	}
}

func TestModelNoCloudOfferForOtherErrors(t *testing.T) {
	m, a := newTestModel(t)
	if err := a.SetEngine(transcriber.Local); err != nil {
		t.Fatal(err)
	}
	m = update(t, m, resultMsg{Err: errors.New("failed to transcribe with Gemini")})
	if strings.Contains(m.View(), "to use CLOUD_GEMINI") {
		t.Error("cloud switch offered for an unrelated failure")
	}
	update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	if a.Engine() != transcriber.Local {
		t.Errorf("g changed engine to %s", a.Engine())
	}
}

func TestModelSpaceIgnoredWhileTranscribing(t *testing.T) {
	gated := &gatedEngine{
		Fake: transcriber.NewFake(transcriber.CloudGemini, "hello", nil),
		open: make(chan struct{}),
	}
	m, a := newTestModel(t, gated)

	a.Record(context.Background())
	a.Stop()
	m = update(t, m, statusMsg{Status: session.Stopped})

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}); cmd != nil {
		t.Error("space should do nothing while the last clip is transcribing")
	}
	close(gated.open)
	a.Wait()

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}); cmd == nil {
		t.Fatal("space should record once the result is in")
	}
}
