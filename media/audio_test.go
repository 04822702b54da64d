package media

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestDownmixMono(t *testing.T) {
	out := downmix(pcm16(0, 16384, -16384, 32767), 1)
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDownmixStereoAverages(t *testing.T) {
	// Left 16384, right -16384 cancel; left 16384, right 16384 average to 0.5.
	out := downmix(pcm16(16384, -16384, 16384, 16384), 2)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if math.Abs(float64(out[0])) > 1e-6 {
		t.Errorf("frame 0 = %v, want 0", out[0])
	}
	if math.Abs(float64(out[1]-0.5)) > 1e-6 {
		t.Errorf("frame 1 = %v, want 0.5", out[1])
	}
}

func TestDownmixIgnoresTrailingBytes(t *testing.T) {
	raw := append(pcm16(100, 200), 0x01) // one stray byte
	out := downmix(raw, 2)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1 full frame", len(out))
	}
}

func TestSupportedVideoExt(t *testing.T) {
	for _, p := range []string{"a.mp4", "b.AVI", "c.mkv", "/x/y/d.mov"} {
		if !SupportedVideoExt(p) {
			t.Errorf("%s should be supported", p)
		}
	}
	for _, p := range []string{"a.txt", "b.wav", "c", "d.mp3"} {
		if SupportedVideoExt(p) {
			t.Errorf("%s should be rejected", p)
		}
	}
}
