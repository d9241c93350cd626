package main

import (
	"time"

	"polyglot/level"
)

const (
	silenceWarnAfter = 3 * time.Second
	speechBar        = 50.0 // bar value counted as voice
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
)

// silenceMonitor watches one level frame per tick and warns when too few of
// the recent frames carry voice.
type silenceMonitor struct {
	windowSz int

	ticks  int
	window []bool
	warned bool
}

func newSilenceMonitor(fps int) *silenceMonitor {
	windowSz := max(int(silenceWarnAfter.Seconds()*float64(fps)), 1)
	return &silenceMonitor{
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func hasSpeech(f level.Frame) bool {
	for _, v := range f {
		if v >= speechBar {
			return true
		}
	}
	return false
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, m.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[i] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(speech bool) SilenceEvent {
	m.window[m.ticks%m.windowSz] = speech
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.windowSz && r < speechMinRatio && !m.warned {
		m.warned = true
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	return SilenceNone
}
