package main

import (
	"bytes"
	"strings"
	"testing"

	"polyglot/transcriber"
)

func TestRunTestMode(t *testing.T) {
	gemini := transcriber.NewFake(transcriber.CloudGemini, "hello world", nil)
	gemini.SetConfidence(0.95)
	a, fake, _ := newTestApp(t, nil, gemini)

	script := strings.Join([]string{
		"START",
		"WAIT_AUDIO_DONE",
		"STOP",
		"WAIT",
		"ENGINE LOCAL",
		"START",
		"STOP",
		"WAIT",
		"ENGINE NOPE",
		"BOGUS",
		"SLEEP 1",
		"QUIT",
		"START",
	}, "\n")
	var out bytes.Buffer
	runTestMode(a, strings.NewReader(script), &out, fake.AudioDone)
	got := out.String()

	if n := strings.Count(got, "STATUS Acquiring"); n != 2 {
		t.Errorf("sessions started = %d, want 2 (nothing after QUIT)\n%s", n, got)
	}
	for _, want := range []string{
		`RESULT CLOUD_GEMINI 0.95 "hello world"`,
		"ENGINE LOCAL",
		"ERROR native speech recognition",
		`ERROR unknown engine "NOPE"`,
		`ERROR unknown command "BOGUS"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	order := []string{"STATUS Acquiring", "STATUS Recording", "STATUS Stopping", "STATUS Stopped", "RESULT"}
	pos := 0
	for _, s := range order {
		i := strings.Index(got[pos:], s)
		if i < 0 {
			t.Fatalf("%q out of order:\n%s", s, got)
		}
		pos += i + len(s)
	}

	if len(gemini.Clips()) != 1 {
		t.Errorf("gemini got %d clips, want 1", len(gemini.Clips()))
	}
}

func TestRunTestModeEOF(t *testing.T) {
	a, fake, _ := newTestApp(t, nil, transcriber.NewFake(transcriber.CloudGemini, "x", nil))
	var out bytes.Buffer
	runTestMode(a, strings.NewReader("START\n"), &out, nil)

	if a.Recording() {
		t.Error("session should be closed when input ends")
	}
	if fake.Open() != 0 {
		t.Error("device still open after input ended")
	}
}
