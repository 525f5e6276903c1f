package signal

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewEventRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("c1") {
			t.Fatalf("attempt %d blocked below the limit", i+1)
		}
	}
	if rl.Allow("c1") {
		t.Error("attempt over the limit allowed")
	}
	// Other connections have their own window.
	if !rl.Allow("c2") {
		t.Error("unrelated connection blocked")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := NewEventRateLimiter(1, 30*time.Millisecond)

	if !rl.Allow("c1") {
		t.Fatal("first attempt blocked")
	}
	if rl.Allow("c1") {
		t.Fatal("second immediate attempt allowed")
	}
	time.Sleep(40 * time.Millisecond)
	if !rl.Allow("c1") {
		t.Error("attempt after the window expired still blocked")
	}
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewEventRateLimiter(1, time.Minute)
	rl.Allow("c1")
	rl.Forget("c1")
	if !rl.Allow("c1") {
		t.Error("history survived Forget")
	}
}
