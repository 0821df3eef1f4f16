package textrender

import "testing"

func TestAutotunerShrinksUnderSustainedLoad(t *testing.T) {
	// Seed scenario 6: 8ms encode at batch_limit=4096, goal=2ms.
	a := NewAutotuner(2_000_000, 4096, 64, 4096)

	for i := 0; i < 3; i++ {
		a.Observe(8_000_000, a.BatchLimit())
	}
	if a.BatchLimit() > 2048 {
		t.Fatalf("expected batch_limit <= 2048 after 3 loaded frames, got %d", a.BatchLimit())
	}

	for i := 0; i < 3; i++ {
		a.Observe(8_000_000, a.BatchLimit())
	}
	if a.BatchLimit() > 1024 {
		t.Fatalf("expected batch_limit <= 1024 after 6 loaded frames, got %d", a.BatchLimit())
	}
	if a.BatchLimit() < 64 {
		t.Fatalf("batch_limit fell below batch_min: %d", a.BatchLimit())
	}
}

func TestAutotunerMonotonicDecreaseUntilFloor(t *testing.T) {
	// P7: under constant overload, batch_limit_used strictly decreases
	// until it reaches batch_min.
	a := NewAutotuner(1_000_000, 512, 32, 512)
	prev := a.BatchLimit()
	for i := 0; i < 50; i++ {
		a.Observe(5_000_000, a.BatchLimit())
		cur := a.BatchLimit()
		if cur > prev {
			t.Fatalf("batch_limit increased under sustained overload: %d -> %d", prev, cur)
		}
		if cur == prev && cur != a.minBatch {
			t.Fatalf("batch_limit stalled at %d before reaching batch_min %d", cur, a.minBatch)
		}
		prev = cur
	}
	if a.BatchLimit() != a.minBatch {
		t.Fatalf("expected convergence to batch_min=%d, got %d", a.minBatch, a.BatchLimit())
	}
}

func TestAutotunerGrowsUnderLightLoad(t *testing.T) {
	a := NewAutotuner(1_000_000, 64, 32, 4096)
	for i := 0; i < 5; i++ {
		a.Observe(100_000, a.BatchLimit()) // well under 50% of goal, saturating the limit each time
	}
	if a.BatchLimit() <= 64 {
		t.Fatalf("expected batch_limit to grow under light, saturating load, got %d", a.BatchLimit())
	}
}

func TestAutotunerDoesNotGrowWhenUnderutilized(t *testing.T) {
	a := NewAutotuner(1_000_000, 256, 32, 4096)
	// instance_count well below batch_limit_used: light load alone must
	// not trigger growth, since the rule requires the frame to have
	// saturated the current limit.
	a.Observe(100_000, 4)
	if a.BatchLimit() != 256 {
		t.Fatalf("expected batch_limit unchanged when frame did not saturate the limit, got %d", a.BatchLimit())
	}
}
