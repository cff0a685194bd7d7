package audio

import (
	"math"
	"testing"
)

func TestRMS_Silence(t *testing.T) {
	t.Parallel()

	if got := RMS(make([]byte, 640)); got != 0 {
		t.Errorf("got %f, want 0 for silent PCM", got)
	}
}

func TestRMS_Empty(t *testing.T) {
	t.Parallel()

	if got := RMS(nil); got != 0 {
		t.Errorf("got %f, want 0 for empty input", got)
	}
}

func TestRMS_ConstantSignal(t *testing.T) {
	t.Parallel()

	// A constant-amplitude signal has RMS equal to that amplitude.
	pcm := Int16sToBytes([]int16{1000, -1000, 1000, -1000})
	got := RMS(pcm)
	if math.Abs(got-1000) > 0.01 {
		t.Errorf("got %f, want 1000", got)
	}
}

func TestMeter_QuietSoundsVisible(t *testing.T) {
	t.Parallel()

	// A near-silent signal (~1% of peak) should still register well above 1%
	// on the perceptual curve.
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = 327
	}
	quiet := Int16sToBytes(samples)

	m := NewMeter()
	var level float64
	for range 50 {
		level = m.Sample(quiet)
	}
	if level < 0.05 {
		t.Errorf("perceptual level %f too low for quiet signal", level)
	}
	if level > 1 {
		t.Errorf("level %f exceeds 1", level)
	}
}

func TestMeter_SmoothsTowardSignal(t *testing.T) {
	t.Parallel()

	loud := Int16sToBytes([]int16{30000, -30000, 30000, -30000})

	m := NewMeter()
	first := m.Sample(loud)
	var last float64
	for range 100 {
		last = m.Sample(loud)
	}

	if first >= last {
		t.Errorf("expected level to converge upward: first=%f last=%f", first, last)
	}
	// Steady-state for a ~92%-of-peak signal should approach its perceptual value.
	want := math.Pow(30000.0/32768.0, 1.0/3.0)
	if math.Abs(last-want) > 0.02 {
		t.Errorf("steady-state level %f, want ≈%f", last, want)
	}
}

func TestMeter_Reset(t *testing.T) {
	t.Parallel()

	m := NewMeter()
	m.Sample(Int16sToBytes([]int16{20000, 20000}))
	m.Reset()
	if m.Level() != 0 {
		t.Errorf("got %f after reset, want 0", m.Level())
	}
}
