package main

import (
	"polyglot/level"
	"polyglot/session"
	"polyglot/transcriber"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI
// and the headless test mode receive the same recording/transcription events.
type EventSink interface {
	Status(st session.Status, err error)
	Tick(elapsed int)
	Frame(f level.Frame)
	Result(r *transcriber.Result, err error)
}
