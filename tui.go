package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"polyglot/beep"
	"polyglot/clipboard"
	"polyglot/level"
	"polyglot/session"
	"polyglot/shutdown"
	"polyglot/transcriber"
)

// TUI message types
type statusMsg struct {
	Status session.Status
	Err    error
}
type elapsedMsg struct{ Elapsed int }
type frameMsg struct{ Frame level.Frame }
type resultMsg struct {
	Result *transcriber.Result
	Err    error
}
type copiedMsg struct{ Err error }
type lifecycleErrMsg struct{ Err error }
type renderTickMsg time.Time

const barHeight = 8

var (
	barColors   = []string{"226", "220", "214", "208", "196"}
	barStyles   [5]lipgloss.Style
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	metricStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func init() {
	for i, c := range barColors {
		barStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
}

// teaSink forwards session and dispatch events into the Bubble Tea loop.
type teaSink struct{ p *tea.Program }

func (s teaSink) Status(st session.Status, err error) { s.p.Send(statusMsg{st, err}) }
func (s teaSink) Tick(elapsed int)                    { s.p.Send(elapsedMsg{elapsed}) }
func (s teaSink) Frame(f level.Frame)                 { s.p.Send(frameMsg{f}) }
func (s teaSink) Result(r *transcriber.Result, err error) {
	s.p.Send(resultMsg{r, err})
}

type tuiModel struct {
	app     *app
	cadence *level.FrameCadence
	fps     int

	status     session.Status
	err        error
	elapsed    int
	frame      level.Frame
	deviceLine string
	silence    *silenceMonitor
	noVoice    bool

	result  *transcriber.Result
	copied  bool
	working bool
	msgs    int

	width, height int
}

func newTUIModel(a *app, cadence *level.FrameCadence, fps int, deviceLine string) tuiModel {
	return tuiModel{app: a, cadence: cadence, fps: fps, deviceLine: deviceLine, frame: level.Idle}
}

func runTUI(a *app, fps int, deviceLine string) error {
	cadence := level.NewFrameCadence()
	a.cadence = func() level.Cadence { return cadence }

	p := tea.NewProgram(newTUIModel(a, cadence, fps, deviceLine), tea.WithAltScreen())
	a.setSink(teaSink{p})
	stop := shutdown.Watch(p.Quit)
	_, err := p.Run()
	stop()
	a.setSink(nil)
	a.Close()
	return err
}

func (m tuiModel) renderTick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return m.renderTick()
}

// Session lifecycle calls block until callbacks that Send to the program
// have returned, so they run as commands rather than inside Update.
func (m tuiModel) toggle() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		if err := a.Toggle(context.Background()); err != nil && !errors.Is(err, errTranscribing) {
			return lifecycleErrMsg{err}
		}
		return nil
	}
}

func copyText(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{clipboard.Copy(text)}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "space":
			if m.app.Transcribing() {
				break
			}
			return m, m.toggle()
		case "tab":
			if !m.app.Recording() {
				m.app.CycleEngine()
			}
		case "g":
			if m.offerCloud() {
				m.app.SetEngine(transcriber.CloudGemini)
				m.err = nil
			}
		case "c":
			if text := m.app.LastText(); text != "" {
				return m, copyText(text)
			}
		}

	case renderTickMsg:
		if m.status == session.Recording {
			m.cadence.Fire()
		}
		return m, m.renderTick()

	case statusMsg:
		m.status = msg.Status
		switch msg.Status {
		case session.Acquiring:
			m.elapsed = 0
			m.err = nil
			m.frame = level.Idle
		case session.Recording:
			beep.Play(beep.Start)
			m.silence = newSilenceMonitor(m.fps)
			m.noVoice = false
		case session.Stopping:
			m.working = true
		case session.Stopped:
			beep.Play(beep.End)
			m.frame = level.Idle
			m.noVoice = false
		case session.Failed:
			beep.Play(beep.Error)
			m.frame = level.Idle
			m.working = false
			m.err = msg.Err
		}

	case elapsedMsg:
		m.elapsed = msg.Elapsed

	case frameMsg:
		if m.status == session.Recording {
			m.frame = msg.Frame
			if m.silence != nil {
				switch m.silence.Tick(hasSpeech(msg.Frame)) {
				case SilenceWarn:
					m.noVoice = true
				case SilenceWarnClear:
					m.noVoice = false
				}
			}
		}

	case resultMsg:
		m.working = false
		m.copied = false
		if msg.Err != nil {
			m.err = msg.Err
			m.result = nil
		} else {
			m.err = nil
			m.result = msg.Result
			m.msgs++
		}

	case copiedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.copied = true
		}

	case lifecycleErrMsg:
		m.err = msg.Err
	}
	return m, nil
}

// formatElapsed renders whole seconds as mm:ss.
func formatElapsed(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

// renderBars draws the five level bars bottom-up, barHeight rows tall.
func renderBars(f level.Frame, recording bool) string {
	var b strings.Builder
	for row := barHeight; row >= 1; row-- {
		for i, v := range f {
			cells := int(v/100*barHeight + 0.5)
			if !recording {
				cells = max(cells, 1)
			}
			cell := "   "
			if cells >= row {
				cell = "██ "
			}
			if recording {
				b.WriteString(barStyles[i].Render(cell))
			} else {
				b.WriteString(idleStyle.Render(cell))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// offerCloud reports whether the last failure came from an engine that
// cannot transcribe clips, so switching to the cloud engine is offered.
func (m tuiModel) offerCloud() bool {
	if m.err == nil || !errors.Is(m.err, transcriber.ErrUnsupportedOperation) || m.app.Recording() {
		return false
	}
	_, ok := m.app.dispatcher.Engine(transcriber.CloudGemini)
	return ok
}

func (m tuiModel) engineLine() string {
	id := m.app.Engine()
	e, ok := m.app.dispatcher.Engine(id)
	if !ok {
		return fmt.Sprintf("engine: %s (not registered)", id)
	}
	line := fmt.Sprintf("engine: %s [%s]", e.Name(), id)
	if !e.IsAvailable() {
		line += " (unavailable)"
	}
	return line
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	recording := m.status == session.Recording
	var lines []string
	lines = append(lines, strings.Split(strings.TrimSuffix(renderBars(m.frame, recording), "\n"), "\n")...)
	lines = append(lines, "")

	switch m.status {
	case session.Acquiring:
		lines = append(lines, dimStyle.Render("◌ waiting for microphone"))
	case session.Recording:
		lines = append(lines, recStyle.Render("● REC "+formatElapsed(m.elapsed)))
		if m.noVoice {
			lines = append(lines, errStyle.Render("  ⚠ no voice detected"))
		}
	case session.Stopping:
		lines = append(lines, dimStyle.Render("◌ finishing "+formatElapsed(m.elapsed)))
	default:
		lines = append(lines, dimStyle.Render("○ STANDBY"))
	}
	lines = append(lines, metricStyle.Render(m.engineLine()))
	if m.deviceLine != "" {
		lines = append(lines, dimStyle.Render(m.deviceLine))
	}
	lines = append(lines, "")

	wrapWidth := max(m.width-2, 10)
	switch {
	case m.err != nil:
		for _, l := range wrapText(m.err.Error(), wrapWidth) {
			lines = append(lines, errStyle.Render(l))
		}
		if m.offerCloud() {
			lines = append(lines, helpStyle.Render("press ")+boldHelp.Render("g")+helpStyle.Render(" to use "+string(transcriber.CloudGemini)))
		}
	case m.working:
		lines = append(lines, dimStyle.Render("transcribing..."))
	case m.result != nil:
		lines = append(lines, dimStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgs)))
		text := wrapText(m.result.Text, wrapWidth)
		for i, l := range text {
			s := textStyle.Render(l)
			if i == len(text)-1 && m.copied {
				s += " " + okStyle.Render("[✓ copied]")
			}
			lines = append(lines, s)
		}
		lines = append(lines, metricStyle.Render(resultMetrics(m.result)))
	default:
		lines = append(lines, dimStyle.Render("No transcriptions yet"))
	}

	lines = append(lines, "")
	lines = append(lines,
		boldHelp.Render("space")+helpStyle.Render(" record/stop  ")+
			boldHelp.Render("tab")+helpStyle.Render(" engine  ")+
			boldHelp.Render("c")+helpStyle.Render(" copy  ")+
			boldHelp.Render("q")+helpStyle.Render(" quit"))
	lines = append(lines, helpStyle.Render("polyglot "+version))

	return lipgloss.NewStyle().
		Width(m.width).
		MaxHeight(m.height).
		PaddingLeft(1).
		Render(strings.Join(lines, "\n"))
}

func resultMetrics(r *transcriber.Result) string {
	s := fmt.Sprintf("%s  %dms", r.EngineUsed, r.DurationMs)
	if r.Confidence > 0 {
		s += fmt.Sprintf("  conf %.2f", r.Confidence)
	}
	if r.RateLimit != "" {
		s += "  " + r.RateLimit
	}
	return s
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
