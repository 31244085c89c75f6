package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/capture"
	"github.com/lokutor-ai/localvoice-agent/pkg/contracts"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
	"github.com/lokutor-ai/localvoice-agent/pkg/metrics"
	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/perf"
	"github.com/lokutor-ai/localvoice-agent/pkg/streaming"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
	"github.com/lokutor-ai/localvoice-agent/pkg/wake"
)

// Controller owns the state machine and drives the capturer, STT adapter,
// streaming bridge, and TTS adapter in sequence, matching the teacher
// orchestrator's single-owner concurrency discipline: only the goroutine
// that calls HandleWake mutates state.
type Controller struct {
	source audio.FrameSource
	gate   *vad.Gate
	floor  *noisefloor.Floor
	det    *wake.Detector
	stt    contracts.STTAdapter
	bridge *streaming.Bridge

	session *Session
	log     logging.Logger
	perf    *perf.Recorder
	// debugDir, when non-empty, receives a WAV dump of every captured
	// utterance via audio.ExportWAV for troubleshooting transcription
	// quality issues offline.
	debugDir string

	state State
}

// New returns a Controller in the Idle state. debugDir may be empty to
// disable per-utterance WAV export.
func New(source audio.FrameSource, gate *vad.Gate, floor *noisefloor.Floor, det *wake.Detector,
	stt contracts.STTAdapter, bridge *streaming.Bridge, session *Session, log logging.Logger, rec *perf.Recorder, debugDir string) *Controller {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Controller{
		source:   source,
		gate:     gate,
		floor:    floor,
		det:      det,
		stt:      stt,
		bridge:   bridge,
		session:  session,
		log:      log,
		perf:     rec,
		debugDir: debugDir,
		state:    Idle,
	}
}

// exportDebugWAV persists pcm for offline troubleshooting; failures are
// logged and otherwise ignored since this is a diagnostics-only path.
func (c *Controller) exportDebugWAV(pcm []byte) {
	if c.debugDir == "" || len(pcm) == 0 {
		return
	}
	tag := fmt.Sprintf("%s_%d", c.session.ID, time.Now().UnixNano())
	if _, err := audio.ExportWAV(c.debugDir, tag, pcm); err != nil {
		c.log.Warn("debug WAV export failed", "error", err)
	}
}

// errKind maps an error to the apperrors taxonomy leaf it matches, for the
// "kind" label on metrics.Errors; errors outside the known sentinels are
// reported as "other" rather than dropped from the counter entirely.
func errKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrEmptyUtterance):
		return "empty_utterance"
	case errors.Is(err, apperrors.ErrEmptyTranscription):
		return "empty_transcription"
	case errors.Is(err, apperrors.ErrTransport):
		return "transport"
	case errors.Is(err, apperrors.ErrDeviceLost):
		return "device_lost"
	default:
		return "other"
	}
}

// observeStage records a stage's duration and, on failure, increments the
// error counter labeled with errKind(err).
func observeStage(stage string, start time.Time, err error) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues(stage, errKind(err)).Inc()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// HandleWake runs one full wake→capture→transcribe→respond→followup cycle.
// Any non-cancellation error inside the turn is logged and the state is
// forced back to Idle.
func (c *Controller) HandleWake(ctx context.Context, llm contracts.LLMAdapter, tts contracts.TTSAdapter) {
	if IgnoresWake(c.state) {
		return
	}
	next, err := transition(c.state, EventWake)
	if err != nil {
		c.log.Debug("wake ignored", "state", c.state)
		return
	}
	c.enter(next)

	wakeTime := time.Now()
	metrics.TurnsActive.Set(1)
	defer metrics.TurnsActive.Set(0)

	opts := capture.PostWake()
	if next == FollowupCapturing {
		// Wake fired again during the followup window (AwaitingFollowup ->
		// FollowupCapturing): use the followup trailing-silence preset, same
		// as continueFollowup's speech-triggered path.
		opts = capture.Followup()
	}
	c.runTurn(ctx, llm, tts, opts, wakeTime)
}

func (c *Controller) runTurn(ctx context.Context, llm contracts.LLMAdapter, tts contracts.TTSAdapter, opts capture.Options, turnStart time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic inside conversation turn, forcing Idle", "panic", r, "error", apperrors.ErrInternal)
			c.enter(Idle)
		}
	}()

	captureStart := time.Now()
	pcm, err := capture.Capture(ctx, c.source, c.gate, c.floor, opts)
	observeStage("capture", captureStart, err)
	if err != nil && ctx.Err() == nil {
		c.log.Error("capture failed", "error", err)
		c.enter(Idle)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if len(pcm) == 0 {
		c.enter(Idle)
		return
	}
	c.exportDebugWAV(pcm)

	next, _ := transition(c.state, EventSilence)
	c.enter(next) // -> Transcribing

	if c.perf != nil {
		c.perf.Record(perf.WakeToTranscriptionStart, time.Since(turnStart), map[string]interface{}{"session": c.session.ID})
	}

	transcribeStart := time.Now()
	text, err := c.stt.Transcribe(pcm)
	observeStage("transcribe", transcribeStart, err)
	if err != nil {
		c.log.Error("transcription failed", "error", err)
		c.enter(Idle)
		return
	}
	if text == "" {
		n, terr := transition(c.state, EventEmpty)
		if terr == nil {
			c.enter(n)
		} else {
			c.enter(Idle)
		}
		return
	}

	next, _ = transition(c.state, EventText)
	c.enter(next) // -> Responding

	transcribeEnd := time.Now()
	c.session.AddMessage("user", text)

	bd := perf.NewBreakdown()
	bd.Mark("turn_start")
	respondStart := time.Now()
	response, err := c.bridge.RunOrFallback(llm, c.session.ContextCopy(), tts, streaming.DefaultChunkOptions(), bd)
	observeStage("respond", respondStart, err)
	if c.perf != nil {
		c.perf.Record(perf.TranscriptionEndToFirstChunk, time.Since(transcribeEnd), map[string]interface{}{"session": c.session.ID})
		if d, ok := bd.Values()[perf.LLMFirstTokenElapsed]; ok {
			c.perf.Record(perf.LLMFirstTokenElapsed, d, map[string]interface{}{"session": c.session.ID})
		}
	}
	if err != nil {
		c.log.Error("response generation failed", "error", err)
		c.enter(Idle)
		return
	}
	if response != "" {
		c.session.AddMessage("assistant", response)
	}
	metrics.TurnsTotal.Inc()

	next, _ = transition(c.state, EventDone)
	c.enter(next) // -> AwaitingFollowup

	c.awaitFollowup(ctx, llm, tts)
}

const followupWindow = 4000 * time.Millisecond

func (c *Controller) awaitFollowup(ctx context.Context, llm contracts.LLMAdapter, tts contracts.TTSAdapter) {
	deadline := time.Now().Add(followupWindow)
	for time.Now().Before(deadline) {
		frame, err := c.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		speech := c.gate.Speech(frame, c.floor.Threshold())
		c.floor.Update(frame, speech)
		if speech {
			next, _ := transition(c.state, EventSpeech)
			c.enter(next) // -> FollowupCapturing
			c.continueFollowup(ctx, llm, tts)
			return
		}
	}

	next, _ := transition(c.state, EventTimeout)
	c.enter(next) // -> Idle
}

func (c *Controller) continueFollowup(ctx context.Context, llm contracts.LLMAdapter, tts contracts.TTSAdapter) {
	captureStart := time.Now()
	pcm, err := capture.Capture(ctx, c.source, c.gate, c.floor, capture.Followup())
	observeStage("capture", captureStart, err)
	if err != nil && ctx.Err() == nil {
		c.log.Error("followup capture failed", "error", err)
		c.enter(Idle)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if len(pcm) == 0 {
		next, _ := transition(c.state, EventEmpty)
		c.enter(next)
		return
	}
	c.exportDebugWAV(pcm)

	next, _ := transition(c.state, EventSilence)
	c.enter(next) // -> Responding

	transcribeStart := time.Now()
	text, err := c.stt.Transcribe(pcm)
	observeStage("transcribe", transcribeStart, err)
	if err != nil || text == "" {
		if err != nil {
			c.log.Error("followup transcription failed", "error", err)
		}
		c.enter(Idle)
		return
	}

	c.session.AddMessage("user", text)
	bd := perf.NewBreakdown()
	bd.Mark("turn_start")
	respondStart := time.Now()
	response, err := c.bridge.RunOrFallback(llm, c.session.ContextCopy(), tts, streaming.DefaultChunkOptions(), bd)
	observeStage("respond", respondStart, err)
	if err != nil {
		c.log.Error("response generation failed", "error", err)
		c.enter(Idle)
		return
	}
	if response != "" {
		c.session.AddMessage("assistant", response)
	}

	next, _ = transition(c.state, EventDone)
	c.enter(next) // -> AwaitingFollowup
	c.awaitFollowup(ctx, llm, tts)
}

// enter applies a state transition and toggles wake detection: entry to
// any capture/response state disables it until Idle or AwaitingFollowup
// is reached again.
func (c *Controller) enter(s State) {
	c.state = s
	if DisablesWakeDetection(s) {
		c.det.Disable()
	} else {
		c.det.Enable()
	}
}
