package vad

import (
	"testing"

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

func silentFrame() audio.Frame {
	return make(audio.Frame, audio.FrameBytes)
}

func TestGateFallsBackToRMSOnlyWithoutPacketVAD(t *testing.T) {
	g := &Gate{log: &logging.NoOpLogger{}} // vad left nil: forced RMS-only path

	if !g.Speech(loudFrame(), 0.1) {
		t.Fatal("expected loud frame above threshold to be classified speech")
	}
	if g.Speech(silentFrame(), 0.1) {
		t.Fatal("expected silent frame below threshold to be classified non-speech")
	}
}

func TestGateRMSBelowThresholdIsNeverSpeech(t *testing.T) {
	g := &Gate{log: &logging.NoOpLogger{}}
	if g.Speech(silentFrame(), 0.0001) {
		t.Fatal("silence should never classify as speech regardless of threshold proximity")
	}
}
