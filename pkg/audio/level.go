package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	// maxInt16 is the peak amplitude of 16-bit signed PCM.
	maxInt16 = 32768.0

	// defaultSmoothing is the exponential-moving-average weight applied to
	// each new metering sample. Higher values track the signal faster at the
	// cost of a jumpier waveform.
	defaultSmoothing = 0.35

	// perceptualExponent maps linear RMS into a curve that gives quiet speech
	// visible movement on the waveform. 1/3 (cube root) approximates loudness
	// perception well enough for a UI level indicator.
	perceptualExponent = 1.0 / 3.0
)

// RMS returns the root-mean-square energy of 16-bit signed little-endian PCM,
// in raw sample units (0–32767).
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Meter converts periodic PCM metering samples into a smoothed 0–1 level
// suitable for driving a live waveform. The raw RMS is normalised against the
// int16 peak and passed through a perceptual (cube-root) curve so quieter
// sounds register visibly.
//
// Meter is safe for concurrent use: one goroutine may feed Sample while
// another reads Level.
type Meter struct {
	mu        sync.Mutex
	smoothing float64
	level     float64
}

// NewMeter creates a Meter with the default smoothing factor.
func NewMeter() *Meter {
	return &Meter{smoothing: defaultSmoothing}
}

// Sample folds one PCM chunk into the smoothed level and returns the updated
// value.
func (m *Meter) Sample(pcm []byte) float64 {
	instant := math.Pow(RMS(pcm)/maxInt16, perceptualExponent)
	if instant > 1 {
		instant = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = m.level*(1-m.smoothing) + instant*m.smoothing
	return m.level
}

// Level returns the current smoothed 0–1 level.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Reset zeroes the smoothed level, typically between recording sessions.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = 0
}
