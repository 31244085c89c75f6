package conversation

import "testing"

func TestTransitionGraphCoversAllDocumentedPaths(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		want  State
	}{
		{Idle, EventWake, Capturing},
		{Capturing, EventSilence, Transcribing},
		{Capturing, EventEmpty, Idle},
		{Transcribing, EventText, Responding},
		{Responding, EventDone, AwaitingFollowup},
		{AwaitingFollowup, EventSpeech, FollowupCapturing},
		{AwaitingFollowup, EventTimeout, Idle},
		{FollowupCapturing, EventSilence, Responding},
		{FollowupCapturing, EventEmpty, Idle},
	}
	for _, tc := range cases {
		got, err := transition(tc.from, tc.event)
		if err != nil {
			t.Fatalf("transition(%s, %s): unexpected error: %v", tc.from, tc.event, err)
		}
		if got != tc.want {
			t.Fatalf("transition(%s, %s) = %s, want %s", tc.from, tc.event, got, tc.want)
		}
	}
}

func TestInvalidTransitionErrors(t *testing.T) {
	if _, err := transition(Idle, EventSilence); err == nil {
		t.Fatal("expected an error transitioning Idle on silence")
	}
}

func TestWakeIgnoredOutsideIdleAndAwaitingFollowup(t *testing.T) {
	for _, s := range []State{Capturing, Transcribing, Responding, FollowupCapturing} {
		if !IgnoresWake(s) {
			t.Fatalf("expected wake to be ignored in state %s", s)
		}
	}
	for _, s := range []State{Idle, AwaitingFollowup} {
		if IgnoresWake(s) {
			t.Fatalf("expected wake to NOT be ignored in state %s", s)
		}
	}
}

func TestDisablesWakeDetectionMatchesIgnoresWake(t *testing.T) {
	for _, s := range []State{Idle, AwaitingFollowup} {
		if DisablesWakeDetection(s) {
			t.Fatalf("expected state %s to keep wake detection enabled", s)
		}
	}
	for _, s := range []State{Capturing, Transcribing, Responding, FollowupCapturing} {
		if !DisablesWakeDetection(s) {
			t.Fatalf("expected state %s to disable wake detection", s)
		}
	}
}
