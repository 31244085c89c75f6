package conversation

import (
	"context"

	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
	"github.com/lokutor-ai/localvoice-agent/pkg/contracts"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/perf"
	"github.com/lokutor-ai/localvoice-agent/pkg/streaming"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
	"github.com/lokutor-ai/localvoice-agent/pkg/wake"
)

// Conversation is a high-level convenience wrapper around a Controller: it
// owns the LLM/TTS adapters alongside the state machine so callers driving
// the agent (cmd/agent's audio loop, or a test harness simulating one) don't
// need to thread them through every call.
type Conversation struct {
	ctrl *Controller
	llm  contracts.LLMAdapter
	tts  contracts.TTSAdapter
}

// NewConversation wires a Controller with the adapters it needs for a full
// wake-to-response cycle and returns the combined facade. configDir points
// at the directory holding system_prompt.txt/memory.log (see pkg/conversation
// Session); logsDir is where dialog logs and debug utterance WAVs land.
func NewConversation(source audio.FrameSource, gate *vad.Gate, floor *noisefloor.Floor, det *wake.Detector,
	stt contracts.STTAdapter, llm contracts.LLMAdapter, tts contracts.TTSAdapter,
	logsDir, configDir string, log logging.Logger, rec *perf.Recorder) (*Conversation, error) {

	session, err := NewSession(logsDir, configDir, log)
	if err != nil {
		return nil, err
	}
	bridge := streaming.New(log)
	ctrl := New(source, gate, floor, det, stt, bridge, session, log, rec, logsDir)

	return &Conversation{ctrl: ctrl, llm: llm, tts: tts}, nil
}

// SetPersona overrides the system prompt used as context for every turn.
func (c *Conversation) SetPersona(text string) {
	c.ctrl.session.SetPersona(text)
}

// Remember appends a standing memory entry visible to future turns' context
// building (callers decide how/whether to fold ListMemory into the prompt).
func (c *Conversation) Remember(entry string) {
	c.ctrl.session.AddMemory(entry)
}

// Memory returns a snapshot of the accumulated memory entries.
func (c *Conversation) Memory() []string {
	return c.ctrl.session.ListMemory()
}

// State reports the controller's current conversation state.
func (c *Conversation) State() State {
	return c.ctrl.State()
}

// HandleWake runs one full turn as if a wake word had just fired. Intended
// for the audio loop to call directly on a wake.Event, or for a harness to
// call without a real detector when simulating a trigger.
func (c *Conversation) HandleWake(ctx context.Context) {
	c.ctrl.HandleWake(ctx, c.llm, c.tts)
}

// Close releases the session's dialog log.
func (c *Conversation) Close() error {
	return c.ctrl.session.Close()
}
