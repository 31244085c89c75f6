package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
)

type fakeSource struct {
	frames []audio.Frame
	i      int
}

func (f *fakeSource) Read(ctx context.Context) (audio.Frame, error) {
	if f.i >= len(f.frames) {
		// Repeat silence indefinitely past the scripted frames so the
		// trailing-silence timeout can still fire.
		return make(audio.Frame, audio.FrameBytes), nil
	}
	fr := f.frames[f.i]
	f.i++
	return fr, nil
}

func (f *fakeSource) Close() error { return nil }

func loud() audio.Frame {
	f := make(audio.Frame, audio.FrameBytes)
	for i := 0; i < audio.FrameSamples; i++ {
		f[2*i] = 0xFF
		f[2*i+1] = 0x7F
	}
	return f
}

func silent() audio.Frame {
	return make(audio.Frame, audio.FrameBytes)
}

func TestCaptureReturnsEmptyWhenUserNeverSpeaks(t *testing.T) {
	src := &fakeSource{}
	floor := noisefloor.New(10, 2.0, 0.15)
	gate := &vad.Gate{}

	buf, err := Capture(context.Background(), src, gate, floor, Options{TrailingSilence: 90})
	if !errors.Is(err, apperrors.ErrEmptyUtterance) {
		t.Fatalf("expected ErrEmptyUtterance when user never speaks, got %v", err)
	}
	if len(buf) != 0 {
		t.Fatalf("expected empty buffer when user never speaks, got %d bytes", len(buf))
	}
}

func TestCaptureEndsOnTrailingSilenceAfterSpeech(t *testing.T) {
	frames := []audio.Frame{loud(), loud(), loud()}
	src := &fakeSource{frames: frames}
	floor := noisefloor.New(10, 2.0, 0.15)
	gate := &vad.Gate{}

	buf, err := Capture(context.Background(), src, gate, floor, Options{TrailingSilence: 90})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) == 0 {
		t.Fatal("expected non-empty buffer after speech was captured")
	}
}

func TestCaptureLocksFloorOnFirstSpeechAndResetsAfter(t *testing.T) {
	frames := []audio.Frame{loud()}
	src := &fakeSource{frames: frames}
	floor := noisefloor.New(10, 2.0, 0.15)
	gate := &vad.Gate{}

	_, err := Capture(context.Background(), src, gate, floor, Options{TrailingSilence: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Reset() clears lock + window; a subsequent Update should register.
	floor.Update(silent(), false)
	if floor.WindowLen() != 1 {
		t.Fatalf("expected floor unlocked and window updated after capture, got len %d", floor.WindowLen())
	}
}

func TestPostWakeAndFollowupPresets(t *testing.T) {
	if PostWake().TrailingSilence.Milliseconds() != 3000 {
		t.Fatalf("expected PostWake trailing silence 3000ms, got %v", PostWake().TrailingSilence)
	}
	if Followup().TrailingSilence.Milliseconds() != 4000 {
		t.Fatalf("expected Followup trailing silence 4000ms, got %v", Followup().TrailingSilence)
	}
}
