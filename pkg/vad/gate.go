// Package vad combines a packet voice-activity detector with an RMS check
// against a dynamic noise-floor threshold into a single per-frame decision.
package vad

import (
	"github.com/maxhawkins/go-webrtcvad"

	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
)

// Mode mirrors webrtcvad's aggressiveness levels (0 = least aggressive
// filtering, 3 = most aggressive).
type Mode int

const (
	ModeQuality        Mode = 0
	ModeLowBitrate     Mode = 1
	ModeAggressive     Mode = 2
	ModeVeryAggressive Mode = 3
)

// Gate makes the speech/non-speech decision for one frame:
// speech := packetVAD(frame) && rms(frame) > threshold.
type Gate struct {
	vad *webrtcvad.VAD
	log logging.Logger
}

// New constructs a Gate. A packet VAD init failure is treated the same as a
// later per-frame failure: the gate degrades to RMS-only.
func New(mode Mode, log logging.Logger) *Gate {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	g := &Gate{log: log}
	v, err := webrtcvad.New()
	if err != nil {
		log.Warn("webrtcvad init failed, falling back to RMS-only", "error", err)
		return g
	}
	if err := v.SetMode(int(mode)); err != nil {
		log.Warn("webrtcvad SetMode failed, falling back to RMS-only", "error", err)
		return g
	}
	g.vad = v
	return g
}

// Speech classifies frame as speech or non-speech.
func (g *Gate) Speech(frame audio.Frame, threshold float64) bool {
	aboveThreshold := frame.RMS() > threshold

	if g.vad == nil {
		return aboveThreshold
	}

	packetSpeech, err := g.vad.Process(audio.SampleRate, frame)
	if err != nil {
		g.log.Debug("packet VAD failed, falling back to RMS-only", "error", err)
		return aboveThreshold
	}

	return packetSpeech && aboveThreshold
}
