// Package beep plays short cues when recording starts, stops or fails.
package beep

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

const sampleRate = 44100

type tone struct {
	freq, duration, volume, decay float64
	// repeat plays the tone twice separated by gap seconds.
	repeat bool
	gap    float64
}

var tones = map[Cue]tone{
	Start: {freq: 1200, duration: 0.2, volume: 0.5, decay: 60},
	End:   {freq: 900, duration: 0.2, volume: 0.5, decay: 40},
	Error: {freq: 350, duration: 0.08, volume: 0.6, decay: 30, repeat: true, gap: 0.05},
}

var disabled atomic.Bool

// Disable silences every later Play call.
func Disable() { disabled.Store(true) }

// Play sounds the cue in the background. Playback failures are ignored.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	go play(Samples(c))
}

// Samples renders the cue as mono signed 16-bit samples at 44.1 kHz.
func Samples(c Cue) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	beep := decayingSine(t.freq, t.duration, t.volume, t.decay)
	if !t.repeat {
		return beep
	}
	out := make([]int16, 0, 2*len(beep)+int(sampleRate*t.gap))
	out = append(out, beep...)
	out = append(out, make([]int16, int(sampleRate*t.gap))...)
	return append(out, beep...)
}

func decayingSine(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
