package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"polyglot/audio"
	"polyglot/clipboard"
	"polyglot/encoder"
	"polyglot/level"
	"polyglot/session"
	"polyglot/transcriber"
)

const recordFor = 3 * time.Second

// Options selects what Run exercises.
type Options struct {
	Audio      audio.Context
	Device     *audio.DeviceInfo
	Containers []string
	Dispatcher *transcriber.Dispatcher
	Engine     transcriber.EngineID
}

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	resetTerminal()
	ctx, cancel := interruptible(context.Background())
	defer cancel()

	w := os.Stdout
	fmt.Fprintln(w, "polyglot doctor - system diagnostics")
	fmt.Fprintln(w, "====================================")

	allPass := checkDevices(w, opts.Audio)
	allPass = checkEngines(w, opts.Dispatcher) && allPass

	var clip audio.Clip
	if allPass {
		var ok bool
		clip, ok = checkCapture(ctx, w, opts, recordFor)
		allPass = ok
	}
	if allPass {
		allPass = checkDispatch(ctx, w, opts.Dispatcher, opts.Engine, clip)
	}
	if !checkClipboard(w) {
		allPass = false
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func checkDevices(w io.Writer, actx audio.Context) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[1/5] Capture devices")

	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(w, "  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth, lower audio quality)"
		}
		fmt.Fprintf(w, "  - %s%s\n", d.Name, note)
	}
	fmt.Fprintf(w, "  PASS: %d device(s)\n", len(devices))
	return true
}

func checkEngines(w io.Writer, d *transcriber.Dispatcher) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[2/5] Engines")

	anyAvailable := false
	for _, desc := range d.Descriptors() {
		status := "unavailable"
		if desc.Available {
			status = "ready"
			anyAvailable = true
		}
		fmt.Fprintf(w, "  %-15s %-12s %s\n", desc.ID, status, desc.Name)
	}
	if !anyAvailable {
		fmt.Fprintln(w, "  FAIL: no engine can be used; set GEMINI_API_KEY or another provider key")
		return false
	}
	fmt.Fprintln(w, "  PASS: at least one engine is ready")
	return true
}

// checkCapture records for dur through a real session and reports the peak
// level seen, so a muted or wrong microphone shows up as silence.
func checkCapture(ctx context.Context, w io.Writer, opts Options, dur time.Duration) (audio.Clip, bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[3/5] Microphone")
	fmt.Fprintf(w, "  Speak for %s...\n", dur)

	var (
		mu   sync.Mutex
		peak float64
		clip audio.Clip
	)
	done := make(chan struct{})
	s := session.New(session.Config{
		Binding: audio.NewBinding(opts.Audio, opts.Device, audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		}),
		Containers: opts.Containers,
		OnFrame: func(f level.Frame) {
			mu.Lock()
			for _, v := range f {
				peak = max(peak, v)
			}
			mu.Unlock()
		},
		OnComplete: func(c audio.Clip) {
			clip = c
			close(done)
		},
	})
	defer s.Close()

	if err := s.Start(ctx); err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", describeCaptureError(err))
		return audio.Clip{}, false
	}

	select {
	case <-time.After(dur):
	case <-ctx.Done():
		fmt.Fprintln(w, "  FAIL: interrupted")
		return audio.Clip{}, false
	}
	if err := s.Stop(); err != nil {
		fmt.Fprintf(w, "  FAIL: finalizing recording: %v\n", err)
		return audio.Clip{}, false
	}
	<-done

	mu.Lock()
	p := peak
	mu.Unlock()

	fmt.Fprintf(w, "  Recorded %.1f KB of %s, peak level %.0f%%\n", float64(clip.Len())/1024, clip.MimeType(), p)
	if clip.Len() == 0 {
		fmt.Fprintln(w, "  FAIL: no audio captured")
		return clip, false
	}
	if p == 0 {
		fmt.Fprintln(w, "  WARN: input is silent; check the selected device and its volume")
	}
	fmt.Fprintln(w, "  PASS: microphone captured audio")
	return clip, true
}

func describeCaptureError(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return fmt.Sprintf("%v (grant microphone access to the terminal)", err)
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return fmt.Sprintf("%v (is another application using the device?)", err)
	}
	return err.Error()
}

func checkDispatch(ctx context.Context, w io.Writer, d *transcriber.Dispatcher, id transcriber.EngineID, clip audio.Clip) bool {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "[4/5] Transcription (%s)\n", id)

	r, err := d.Dispatch(ctx, clip, id)
	if err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(w, "  Text: %s\n", text)
	fmt.Fprintf(w, "  PASS: %dms round trip\n", r.DurationMs)
	return true
}

func checkClipboard(w io.Writer) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[5/5] Clipboard")

	if !clipboard.Available() {
		fmt.Fprintln(w, "  WARN: no clipboard utility; the copy key will not work")
		return true
	}

	type cbResult struct {
		msg string
		err error
	}
	ch := make(chan cbResult, 1)
	go func() {
		msg, err := clipboard.Verify()
		ch <- cbResult{msg, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", res.err)
			return false
		}
		fmt.Fprintf(w, "  PASS: %s\n", res.msg)
		return true
	case <-time.After(3 * time.Second):
		fmt.Fprintln(w, "  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}
