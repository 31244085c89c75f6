package contracts

import "github.com/lokutor-ai/localvoice-agent/pkg/apperrors"

// Registry maps an Intent to the Handler that serves it. Dispatch normally
// happens inside the LLM worker; this host-side copy exists so tests can
// assert the single-Complete-no-Chunks contract of the handler claim.
type Registry struct {
	handlers map[Intent]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Intent]Handler)}
}

// Register associates intent with h, overwriting any previous registration.
func (r *Registry) Register(intent Intent, h Handler) {
	r.handlers[intent] = h
}

// Dispatch returns a registered handler that claims text together with its
// intent, or IntentDefault and nil when none claims it. Handlers are tried in
// map iteration order, so when several handlers claim the same text, which
// one is returned is not defined.
func (r *Registry) Dispatch(text string) (Intent, Handler) {
	for intent, h := range r.handlers {
		if h.Claims(text) {
			return intent, h
		}
	}
	return IntentDefault, nil
}

// Run dispatches text and returns the claiming handler's output. A handler
// that claims text but returns empty output has violated its contract,
// reported as ErrHandlerNoOutput rather than silently speaking nothing.
func (r *Registry) Run(text string) (Intent, string, error) {
	intent, h := r.Dispatch(text)
	if h == nil {
		return IntentDefault, "", nil
	}
	out := h.Handle(text)
	if out == "" {
		return intent, "", apperrors.ErrHandlerNoOutput
	}
	return intent, out, nil
}
