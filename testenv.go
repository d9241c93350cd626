package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"polyglot/level"
	"polyglot/log"
	"polyglot/session"
	"polyglot/transcriber"
)

// lineSink prints one line per event for scripts driving -test mode.
type lineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *lineSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

func (s *lineSink) Status(st session.Status, err error) {
	if err != nil && st == session.Failed {
		s.printf("STATUS %s %v", st, err)
		return
	}
	s.printf("STATUS %s", st)
}

func (s *lineSink) Tick(elapsed int) { s.printf("TICK %d", elapsed) }

func (s *lineSink) Frame(level.Frame) {}

func (s *lineSink) Result(r *transcriber.Result, err error) {
	if err != nil {
		s.printf("ERROR %v", err)
		return
	}
	s.printf("RESULT %s %.2f %q", r.EngineUsed, r.Confidence, r.Text)
}

// runTestMode drives the app from line commands on in:
//
//	START | STOP | WAIT | WAIT_AUDIO_DONE | ENGINE <id> | SLEEP <ms> | QUIT
//
// audioDone backs WAIT_AUDIO_DONE and may be nil.
func runTestMode(a *app, in io.Reader, out io.Writer, audioDone func() <-chan struct{}) {
	sink := &lineSink{w: out}
	a.setSink(sink)
	defer a.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "START":
			if err := a.Record(context.Background()); err != nil {
				sink.printf("ERROR %v", err)
			}
		case cmd == "STOP":
			if err := a.Stop(); err != nil {
				sink.printf("ERROR %v", err)
			}
		case cmd == "WAIT":
			a.Wait()
		case cmd == "WAIT_AUDIO_DONE":
			if audioDone != nil {
				<-audioDone()
			}
		case cmd == "QUIT":
			return
		case strings.HasPrefix(cmd, "ENGINE "):
			id := transcriber.EngineID(strings.TrimSpace(cmd[7:]))
			if err := a.SetEngine(id); err != nil {
				sink.printf("ERROR %v", err)
			} else {
				sink.printf("ENGINE %s", id)
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[6:]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		default:
			log.Warnf("test mode: unknown command %q", cmd)
			sink.printf("ERROR unknown command %q", cmd)
		}
	}
}
