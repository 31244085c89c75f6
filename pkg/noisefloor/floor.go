// Package noisefloor maintains a rolling RMS baseline over non-speech
// frames and exposes a live detection threshold derived from it.
package noisefloor

import (
	"sync"

	"github.com/lokutor-ai/localvoice-agent/pkg/audio"
)

const (
	// DefaultWindow is ~3s of non-speech RMS samples at one per 30ms frame.
	DefaultWindow = 100
	// DefaultMultiplier scales the rolling mean into a detection threshold.
	DefaultMultiplier = 2.0
	// DefaultFallback is used until the window has collected any sample.
	DefaultFallback = 0.15
)

// Floor is a single mutable, mutex-guarded noise-floor estimator. Only the
// audio loop mutates it via Update/Lock/Reset; Threshold is safe for
// concurrent readers (e.g. the wake detector).
type Floor struct {
	mu         sync.RWMutex
	window     []float64
	capacity   int
	multiplier float64
	fallback   float64
	locked     bool
	threshold  float64
}

// New returns a Floor with the given window capacity and multiplier.
func New(capacity int, multiplier, fallback float64) *Floor {
	return &Floor{
		capacity:   capacity,
		multiplier: multiplier,
		fallback:   fallback,
		threshold:  fallback,
	}
}

// NewDefault returns a Floor configured with the standard defaults.
func NewDefault() *Floor {
	return New(DefaultWindow, DefaultMultiplier, DefaultFallback)
}

// Update appends frame's RMS to the window when the frame was classified
// non-speech and the floor is not locked; speech frames and locked state
// are no-ops, matching the teacher's "only update on non-speech" rule.
func (f *Floor) Update(frame audio.Frame, speech bool) {
	if speech {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locked {
		return
	}

	f.window = append(f.window, frame.RMS())
	if len(f.window) > f.capacity {
		f.window = f.window[len(f.window)-f.capacity:]
	}
	f.recompute()
}

func (f *Floor) recompute() {
	if len(f.window) == 0 {
		f.threshold = f.fallback
		return
	}
	var sum float64
	for _, v := range f.window {
		sum += v
	}
	mean := sum / float64(len(f.window))
	f.threshold = mean * f.multiplier
}

// Threshold returns the current detection threshold.
func (f *Floor) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// Lock freezes the threshold during active speech capture so a loud
// utterance does not inflate the noise floor.
func (f *Floor) Lock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = true
}

// Reset resumes updates and clears the window, recomputing the fallback
// threshold. Invoked on capture completion.
func (f *Floor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	f.window = nil
	f.threshold = f.fallback
}

// WindowLen reports the current number of collected RMS samples, for tests
// asserting the capacity invariant.
func (f *Floor) WindowLen() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.window)
}
