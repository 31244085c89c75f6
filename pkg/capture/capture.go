// Package capture accumulates frames into an utterance buffer until a
// configurable span of trailing silence is observed.
package capture

import (
	"context"
	"time"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
)

const frameDuration = 30 * time.Millisecond

// Options configures a single capture call.
type Options struct {
	// TrailingSilence is how much accumulated silence ends the capture.
	TrailingSilence time.Duration
}

// PostWake is the preset used immediately after a wake event.
func PostWake() Options {
	return Options{TrailingSilence: 3000 * time.Millisecond}
}

// Followup is the preset used while awaiting a follow-up utterance.
func Followup() Options {
	return Options{TrailingSilence: 4000 * time.Millisecond}
}

// Capture reads frames from source, gating each with gate against floor's
// threshold, until TrailingSilence worth of consecutive non-speech frames
// has accumulated. It locks floor on first speech and unconditionally
// resets it before returning. If the caller never spoke within the
// timeout, it returns apperrors.ErrEmptyUtterance.
func Capture(ctx context.Context, source audio.FrameSource, gate *vad.Gate, floor *noisefloor.Floor, opts Options) ([]byte, error) {
	var buf []byte
	var silence time.Duration
	spoke := false

	defer floor.Reset()

	for {
		frame, err := source.Read(ctx)
		if err != nil {
			return buf, err
		}

		speech := gate.Speech(frame, floor.Threshold())
		floor.Update(frame, speech)

		if speech {
			if !spoke {
				spoke = true
				floor.Lock()
			}
			silence = 0
		} else {
			silence += frameDuration
		}

		if spoke {
			buf = append(buf, frame...)
		}

		if silence >= opts.TrailingSilence {
			if !spoke {
				return nil, apperrors.ErrEmptyUtterance
			}
			return buf, nil
		}

		select {
		case <-ctx.Done():
			return buf, ctx.Err()
		default:
		}
	}
}
