package contracts

import (
	"errors"
	"strings"
	"testing"

	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
)

type noteHandler struct{}

func (noteHandler) Claims(text string) bool { return strings.HasPrefix(text, "take a note") }
func (noteHandler) Handle(text string) string {
	return "Got it. Note saved."
}

type silentHandler struct{}

func (silentHandler) Claims(text string) bool   { return strings.HasPrefix(text, "shh") }
func (silentHandler) Handle(text string) string { return "" }

func TestRegistryDispatchesToClaimingHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(IntentNote, noteHandler{})

	intent, h := r.Dispatch("take a note buy milk")
	if intent != IntentNote || h == nil {
		t.Fatalf("expected note intent to be claimed, got intent=%v handler=%v", intent, h)
	}
	if got := h.Handle("take a note buy milk"); got != "Got it. Note saved." {
		t.Fatalf("unexpected handler output: %q", got)
	}
}

func TestRegistryDispatchFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(IntentNote, noteHandler{})

	intent, h := r.Dispatch("what's the weather")
	if intent != IntentDefault || h != nil {
		t.Fatalf("expected no handler to claim unrelated text, got intent=%v handler=%v", intent, h)
	}
}

func TestRegistryRunReturnsClaimingHandlerOutput(t *testing.T) {
	r := NewRegistry()
	r.Register(IntentNote, noteHandler{})

	intent, out, err := r.Run("take a note buy milk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != IntentNote || out != "Got it. Note saved." {
		t.Fatalf("unexpected run result: intent=%v out=%q", intent, out)
	}
}

func TestRegistryRunWithNoClaimReturnsDefaultAndNoError(t *testing.T) {
	r := NewRegistry()
	r.Register(IntentNote, noteHandler{})

	intent, out, err := r.Run("what's the weather")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent != IntentDefault || out != "" {
		t.Fatalf("expected empty default result, got intent=%v out=%q", intent, out)
	}
}

func TestRegistryRunReportsHandlerNoOutput(t *testing.T) {
	r := NewRegistry()
	r.Register(IntentNote, silentHandler{})

	_, _, err := r.Run("shh be quiet")
	if !errors.Is(err, apperrors.ErrHandlerNoOutput) {
		t.Fatalf("expected ErrHandlerNoOutput for a claiming handler with empty output, got %v", err)
	}
}
