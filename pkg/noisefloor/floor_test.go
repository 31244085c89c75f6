package noisefloor

import (
	"testing"

	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
)

func frameAt(amplitude int16) audio.Frame {
	f := make(audio.Frame, audio.FrameBytes)
	for i := 0; i < audio.FrameSamples; i++ {
		f[2*i] = byte(amplitude)
		f[2*i+1] = byte(amplitude >> 8)
	}
	return f
}

func TestFallbackThresholdBeforeAnySample(t *testing.T) {
	f := NewDefault()
	if got := f.Threshold(); got != DefaultFallback {
		t.Fatalf("expected fallback threshold %f, got %f", DefaultFallback, got)
	}
}

func TestUpdateIgnoresSpeechFrames(t *testing.T) {
	f := NewDefault()
	f.Update(frameAt(10000), true)
	if f.WindowLen() != 0 {
		t.Fatalf("expected speech frames to be ignored, window len = %d", f.WindowLen())
	}
}

func TestUpdateRecomputesThresholdAsMeanTimesMultiplier(t *testing.T) {
	f := New(10, 2.0, 0.15)
	f.Update(frameAt(1000), false)
	mean := f.Threshold() / 2.0
	if mean <= 0 {
		t.Fatalf("expected positive mean-derived threshold, got %f", f.Threshold())
	}
	if want := frameAt(1000).RMS() * 2.0; f.Threshold() != want {
		t.Fatalf("expected threshold %f (mean of one sample times 2.0), got %f", want, f.Threshold())
	}
}

func TestWindowCapacityBounded(t *testing.T) {
	f := New(5, 2.0, 0.15)
	for i := 0; i < 20; i++ {
		f.Update(frameAt(int16(100+i)), false)
	}
	if f.WindowLen() > 5 {
		t.Fatalf("expected window bounded to capacity 5, got %d", f.WindowLen())
	}
}

func TestLockFreezesThreshold(t *testing.T) {
	f := New(10, 2.0, 0.15)
	f.Update(frameAt(1000), false)
	before := f.Threshold()
	f.Lock()
	f.Update(frameAt(30000), false)
	if f.Threshold() != before {
		t.Fatalf("expected threshold frozen while locked: before=%f after=%f", before, f.Threshold())
	}
}

func TestResetClearsWindowAndUnlocks(t *testing.T) {
	f := New(10, 2.0, 0.15)
	f.Update(frameAt(1000), false)
	f.Lock()
	f.Reset()
	if f.WindowLen() != 0 {
		t.Fatalf("expected window cleared after reset, got len %d", f.WindowLen())
	}
	if got := f.Threshold(); got != 0.15 {
		t.Fatalf("expected fallback threshold after reset, got %f", got)
	}
	// Confirm unlocked: an update should now take effect.
	f.Update(frameAt(1000), false)
	if f.WindowLen() != 1 {
		t.Fatalf("expected reset to unlock updates, window len = %d", f.WindowLen())
	}
}
