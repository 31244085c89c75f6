package wake

import "testing"

func TestNewRingIsZeroPaddedAndFullLength(t *testing.T) {
	r := NewRing()
	if r.Len() != RingSamples {
		t.Fatalf("expected ring length %d, got %d", RingSamples, r.Len())
	}
	for _, s := range r.Window() {
		if s != 0 {
			t.Fatal("expected freshly constructed ring to be zero-padded")
		}
	}
}

func TestRingAppendKeepsFixedLength(t *testing.T) {
	r := NewRing()
	r.Append(make([]int16, 480))
	if r.Len() != RingSamples {
		t.Fatalf("expected ring to remain %d samples after append, got %d", RingSamples, r.Len())
	}
}

func TestRingAppendDisplacesOldest(t *testing.T) {
	r := NewRing()
	marker := make([]int16, 480)
	for i := range marker {
		marker[i] = 1
	}
	r.Append(marker)
	window := r.Window()
	// The marker should now occupy the tail of the window.
	tail := window[len(window)-480:]
	for _, v := range tail {
		if v != 1 {
			t.Fatal("expected appended samples at the tail of the window")
		}
	}
	// And the front should still be zero-padding.
	if window[0] != 0 {
		t.Fatal("expected front of window to remain zero-padded after one small append")
	}
}

func TestRingAppendLargerThanCapacityTruncatesToMostRecent(t *testing.T) {
	r := NewRing()
	big := make([]int16, RingSamples+480)
	for i := range big {
		big[i] = int16(i % 100)
	}
	r.Append(big)
	if r.Len() != RingSamples {
		t.Fatalf("expected ring to stay at capacity, got %d", r.Len())
	}
	window := r.Window()
	for i, v := range window {
		if want := big[len(big)-RingSamples+i]; v != want {
			t.Fatalf("expected window[%d] = %d from the most recent samples, got %d", i, want, v)
		}
	}
}
