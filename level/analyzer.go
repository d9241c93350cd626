// Package level turns live PCM into a coarse five-bar frequency profile for
// the recording meter.
package level

import (
	"encoding/binary"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window in samples.
	FFTSize = 64
	// Bars is the number of low-frequency bins reported per frame.
	Bars = 5

	minDecibels = -100.0
	maxDecibels = -30.0
	smoothing   = 0.8
)

// Frame holds one bar value per bin, each in [0, 100].
type Frame [Bars]float64

// Idle is what the meter shows when nothing is recording.
var Idle = Frame{10, 10, 10, 10, 10}

// Analyzer keeps the most recent FFTSize samples and produces byte-scaled
// frequency data the way a browser AnalyserNode does: Blackman window,
// magnitude smoothed over time, decibels mapped from [-100, -30] to [0, 255].
type Analyzer struct {
	mu     sync.Mutex
	ring   [FFTSize]float64
	pos    int
	window [FFTSize]float64
	smooth []float64

	fft    *fourier.FFT
	coeffs []complex128
	frame  [FFTSize]float64
}

func NewAnalyzer() *Analyzer {
	a := &Analyzer{
		fft:    fourier.NewFFT(FFTSize),
		smooth: make([]float64, FFTSize/2+1),
	}
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	for i := range a.window {
		x := float64(i) / FFTSize
		a.window[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return a
}

// Write appends signed 16-bit little-endian mono samples.
func (a *Analyzer) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % FFTSize
	}
}

// ByteFrequencyData runs one analysis step and returns every bin scaled to
// 0..255. Each call advances the smoothing state.
func (a *Analyzer) ByteFrequencyData() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.frame {
		a.frame[i] = a.ring[(a.pos+i)%FFTSize] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame[:])

	out := make([]uint8, len(a.smooth))
	for k, c := range a.coeffs {
		mag := cmplx.Abs(c) / FFTSize
		a.smooth[k] = smoothing*a.smooth[k] + (1-smoothing)*mag
		out[k] = toByte(a.smooth[k])
	}
	return out
}

// Frame runs one analysis step and returns the first Bars bins as 0..100.
func (a *Analyzer) Frame() Frame {
	data := a.ByteFrequencyData()
	var f Frame
	for i := range f {
		f[i] = float64(data[i]) / 255 * 100
	}
	return f
}

func toByte(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := math.Floor(255 / (maxDecibels - minDecibels) * (db - minDecibels))
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
