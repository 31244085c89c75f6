package conversation

import (
	"context"
	"testing"

	"github.com/lokutor-ai/localvoice-agent/pkg/noisefloor"
	"github.com/lokutor-ai/localvoice-agent/pkg/vad"
	"github.com/lokutor-ai/localvoice-agent/pkg/wake"
)

func TestConversationFacadeSetPersonaAndMemory(t *testing.T) {
	src := &fakeSource{loudFrames: 0}
	stt := &stubSTT{text: "unreachable"}
	llm := &stubLLM{}
	tts := &stubTTS{}

	conv, err := NewConversation(src, &vad.Gate{}, noisefloor.New(10, 2.0, 0.15), &wake.Detector{},
		stt, llm, tts, t.TempDir(), "", nil, nil)
	if err != nil {
		t.Fatalf("NewConversation failed: %v", err)
	}
	t.Cleanup(func() { conv.Close() })

	conv.SetPersona("Be terse.")
	conv.Remember("user prefers metric units")
	conv.Remember("user prefers metric units")

	if got := conv.Memory(); len(got) != 2 {
		t.Fatalf("expected 2 memory entries (no dedup), got %v", got)
	}

	conv.HandleWake(context.Background())
	if conv.State() != Idle {
		t.Fatalf("expected Idle after a wake with no speech, got %s", conv.State())
	}
}
