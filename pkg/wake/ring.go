package wake

// RingSamples is exactly 1s of audio at 16kHz: the wake detector's window.
const RingSamples = 16000

// Ring holds the most recent RingSamples int16 samples, zero-padded at
// construction. Invariant: always exactly RingSamples long.
type Ring struct {
	buf []int16
}

// NewRing returns a zero-filled ring of RingSamples samples.
func NewRing() *Ring {
	return &Ring{buf: make([]int16, RingSamples)}
}

// Append pushes samples onto the back of the ring, displacing an equal
// number from the front. If samples is longer than the ring, only the
// most recent Len() samples are kept and the rest are discarded.
func (r *Ring) Append(samples []int16) {
	if len(samples) > len(r.buf) {
		samples = samples[len(samples)-len(r.buf):]
	}
	n := len(samples)
	copy(r.buf, r.buf[n:])
	copy(r.buf[len(r.buf)-n:], samples)
}

// Window returns the current 16000-sample window. The returned slice is a
// copy so callers may hold onto it past the next Append.
func (r *Ring) Window() []int16 {
	out := make([]int16, len(r.buf))
	copy(out, r.buf)
	return out
}

// Len reports the ring's fixed capacity, always RingSamples.
func (r *Ring) Len() int {
	return len(r.buf)
}
