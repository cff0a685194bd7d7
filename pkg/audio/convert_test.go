package audio

import (
	"testing"

	"github.com/gymtime/gymtime/pkg/types"
)

// pcmFromSamples builds little-endian int16 PCM bytes from sample values.
func pcmFromSamples(samples ...int16) []byte {
	return Int16sToBytes(samples)
}

func TestStereoToMono_Averages(t *testing.T) {
	t.Parallel()

	// Two stereo frames: (100, 200) and (-100, -300).
	in := pcmFromSamples(100, 200, -100, -300)
	out := StereoToMono(in)

	got := BytesToInt16s(out)
	want := []int16{150, -200}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_ClampsOverflow(t *testing.T) {
	t.Parallel()

	in := pcmFromSamples(32767, 32767)
	got := BytesToInt16s(StereoToMono(in))
	if got[0] != 32767 {
		t.Errorf("got %d, want clamped 32767", got[0])
	}
}

func TestResampleMono16_SameRateUnchanged(t *testing.T) {
	t.Parallel()

	in := pcmFromSamples(1, 2, 3, 4)
	out := ResampleMono16(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("expected same-rate resample to return input unchanged")
	}
}

func TestResampleMono16_HalvesSampleCount(t *testing.T) {
	t.Parallel()

	in := make([]byte, 480*2) // 480 samples at 32 kHz = 15 ms
	out := ResampleMono16(in, 32000, 16000)
	if len(out) != 240*2 {
		t.Errorf("got %d bytes, want %d", len(out), 240*2)
	}
}

func TestFormatConverter_FastPath(t *testing.T) {
	t.Parallel()

	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	frame := types.AudioFrame{Data: pcmFromSamples(5, 6), SampleRate: 16000, Channels: 1}

	got := conv.Convert(frame)
	if &got.Data[0] != &frame.Data[0] {
		t.Error("expected matching format to pass through without copying")
	}
}

func TestFormatConverter_StereoDownmixAndResample(t *testing.T) {
	t.Parallel()

	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}

	// 960 stereo samples at 48 kHz = 20 ms.
	in := make([]byte, 960*4)
	got := conv.Convert(types.AudioFrame{Data: in, SampleRate: 48000, Channels: 2})

	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("got format %d/%d, want 16000/1", got.SampleRate, got.Channels)
	}
	// 20 ms at 16 kHz mono = 320 samples.
	if len(got.Data) != 320*2 {
		t.Errorf("got %d bytes, want %d", len(got.Data), 320*2)
	}
}

func TestFormatConverter_DropsOddByteCount(t *testing.T) {
	t.Parallel()

	conv := FormatConverter{Target: Format{SampleRate: 16000, Channels: 1}}
	got := conv.Convert(types.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 48000, Channels: 2})
	if len(got.Data) != 0 {
		t.Errorf("expected corrupt frame to be dropped, got %d bytes", len(got.Data))
	}
}

func TestBytesToInt16s_RoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1, -1, 32767, -32768}
	got := BytesToInt16s(Int16sToBytes(samples))
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], samples[i])
		}
	}
}
