package wake

import (
	"testing"
	"time"

	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
)

func loudFrame() audio.Frame {
	f := make(audio.Frame, audio.FrameBytes)
	for i := 0; i < audio.FrameSamples; i++ {
		f[2*i] = 0xFF
		f[2*i+1] = 0x7F
	}
	return f
}

func newBareDetector() *Detector {
	return &Detector{
		log:         &logging.NoOpLogger{},
		ring:        NewRing(),
		embedBuffer: make([]float32, nEmbedFrames*embeddingDim),
		melBuffer:   make([]float32, 0, 300*melBins),
		audioRem:    make([]int16, 0, chunkSamples*2),
	}
}

func TestDetectReturnsNilWhenDisabled(t *testing.T) {
	d := newBareDetector()
	ev, err := d.Detect(loudFrame(), 0.0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatal("expected no event while detector disabled")
	}
}

func TestDetectReturnsNilBelowNoiseThreshold(t *testing.T) {
	d := newBareDetector()
	d.Enable()
	ev, err := d.Detect(loudFrame(), 10.0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatal("expected no event when frame RMS does not exceed threshold")
	}
}

func TestDetectReturnsNilWhenNotSpeech(t *testing.T) {
	d := newBareDetector()
	d.Enable()
	ev, err := d.Detect(loudFrame(), 0.0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatal("expected no event when VAD reports non-speech")
	}
}

func TestDetectRespectsCooldown(t *testing.T) {
	d := newBareDetector()
	d.Enable()
	d.lastDetect = time.Now()
	ev, err := d.Detect(loudFrame(), 0.0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Fatal("expected no event while in cooldown")
	}
}

func TestCooldownExpiresAfterConfiguredDuration(t *testing.T) {
	d := newBareDetector()
	d.lastDetect = time.Now().Add(-Cooldown - time.Millisecond)
	if d.inCooldown(time.Now()) {
		t.Fatal("expected cooldown to have expired")
	}
}
