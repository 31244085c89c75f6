package audio

import (
	"math"
	"testing"
)

func TestFrameRMSSilence(t *testing.T) {
	f := make(Frame, FrameBytes)
	if rms := f.RMS(); rms != 0 {
		t.Errorf("expected 0 RMS for silence, got %f", rms)
	}
}

func TestFrameRMSFullScale(t *testing.T) {
	samples := make([]int16, FrameSamples)
	for i := range samples {
		samples[i] = 32767
	}
	f := make(Frame, FrameBytes)
	for i, s := range samples {
		f[2*i] = byte(s)
		f[2*i+1] = byte(s >> 8)
	}
	rms := f.RMS()
	if math.Abs(rms-1.0) > 0.01 {
		t.Errorf("expected RMS near 1.0 for full-scale tone, got %f", rms)
	}
}

func TestFrameSamplesLength(t *testing.T) {
	f := make(Frame, FrameBytes)
	if len(f.Samples()) != FrameSamples {
		t.Errorf("expected %d samples, got %d", FrameSamples, len(f.Samples()))
	}
}
