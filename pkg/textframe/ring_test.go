package textframe

import (
	"errors"
	"testing"
)

func newTestRing(n int, capacity int) *FrameRing {
	backings := make([][]Quad, n)
	for i := range backings {
		backings[i] = make([]Quad, capacity)
	}
	return NewFrameRing(backings)
}

func TestFrameRingStateMachine(t *testing.T) {
	r := newTestRing(2, 4)

	if _, err := r.BeginFrame(0); err != nil {
		t.Fatalf("beginFrame: %v", err)
	}
	if err := r.SetProjection(0, [16]float32{}); err != nil {
		t.Fatalf("setProjection: %v", err)
	}
	if err := r.QueueQuad(0, Quad{}); err != nil {
		t.Fatalf("queueQuad: %v", err)
	}
	if err := r.MarkEncoded(0, FrameStats{DrawCount: 1}, nil); err != nil {
		t.Fatalf("markEncoded: %v", err)
	}
	if err := r.EndFrame(0); err != nil {
		t.Fatalf("endFrame: %v", err)
	}

	b, _ := r.Bank(0)
	if b.State() != FrameIdle {
		t.Fatalf("expected Idle after endFrame, got %s", b.State())
	}
}

func TestFrameRingOutOfOrderIsInvalidFrameState(t *testing.T) {
	r := newTestRing(1, 4)

	if err := r.QueueQuad(0, Quad{}); !errors.Is(err, ErrInvalidFrameState) {
		t.Fatalf("expected ErrInvalidFrameState before beginFrame, got %v", err)
	}

	if _, err := r.BeginFrame(0); err != nil {
		t.Fatalf("beginFrame: %v", err)
	}
	if err := r.EndFrame(0); !errors.Is(err, ErrInvalidFrameState) {
		t.Fatalf("expected ErrInvalidFrameState calling endFrame before encode, got %v", err)
	}
}

func TestFrameRingSlotOutOfRange(t *testing.T) {
	r := newTestRing(2, 4)
	if _, err := r.BeginFrame(5); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
}

func TestFrameRingQueueQuadFrameFull(t *testing.T) {
	r := newTestRing(1, 2)
	if _, err := r.BeginFrame(0); err != nil {
		t.Fatalf("beginFrame: %v", err)
	}
	if err := r.QueueQuad(0, Quad{}); err != nil {
		t.Fatalf("queueQuad 1: %v", err)
	}
	if err := r.QueueQuad(0, Quad{}); err != nil {
		t.Fatalf("queueQuad 2: %v", err)
	}
	if err := r.QueueQuad(0, Quad{}); !errors.Is(err, ErrFrameFull) {
		t.Fatalf("expected ErrFrameFull, got %v", err)
	}
}

func TestFrameRingQueueQuadsAllOrNothing(t *testing.T) {
	r := newTestRing(1, 4)
	if _, err := r.BeginFrame(0); err != nil {
		t.Fatalf("beginFrame: %v", err)
	}

	overflowing := make([]Quad, 5)
	if err := r.QueueQuads(0, overflowing); !errors.Is(err, ErrFrameFull) {
		t.Fatalf("expected ErrFrameFull, got %v", err)
	}
	b, _ := r.Bank(0)
	if b.InstanceCount() != 0 {
		t.Fatalf("expected no partial write on overflow, got instance_count=%d", b.InstanceCount())
	}

	fitting := []Quad{{X: 1}, {X: 2}, {X: 3}}
	if err := r.QueueQuads(0, fitting); err != nil {
		t.Fatalf("queueQuads: %v", err)
	}
	if b.InstanceCount() != 3 {
		t.Fatalf("expected instance_count=3, got %d", b.InstanceCount())
	}
}

func TestFrameRingTelemetryConsistency(t *testing.T) {
	// P6: glyph_count equals total quads queued since beginFrame;
	// draw_count >= 1 iff glyph_count > 0; used_transfer_queue iff
	// frameSyncInfo is present.
	r := newTestRing(1, 8)
	if _, err := r.BeginFrame(0); err != nil {
		t.Fatalf("beginFrame: %v", err)
	}
	if err := r.QueueQuads(0, []Quad{{}, {}, {}}); err != nil {
		t.Fatalf("queueQuads: %v", err)
	}
	sync := &TransferSync{Semaphore: 1, Value: 1, StageMask: 1}
	if err := r.MarkEncoded(0, FrameStats{DrawCount: 1}, sync); err != nil {
		t.Fatalf("markEncoded: %v", err)
	}
	b, _ := r.Bank(0)
	stats := b.Stats()
	if stats.GlyphCount != 3 {
		t.Fatalf("expected glyph_count=3, got %d", stats.GlyphCount)
	}
	if stats.DrawCount < 1 {
		t.Fatalf("expected draw_count>=1 when glyph_count>0")
	}
	gotSync, ok := b.TransferSync()
	if !ok || !stats.UsedTransferQueue {
		t.Fatalf("expected used_transfer_queue true with sync present")
	}
	if gotSync != *sync {
		t.Fatalf("transfer sync mismatch: %+v vs %+v", gotSync, *sync)
	}
}

func TestQuadCornersAndUVs(t *testing.T) {
	q := Quad{X: 100, Y: 200, W: 8, H: 16, U0: 0.1, V0: 0.2, U1: 0.3, V1: 0.4}
	wantCorners := [4][2]float32{{100, 200}, {108, 200}, {100, 216}, {108, 216}}
	if q.Corners() != wantCorners {
		t.Fatalf("Corners() = %v, want %v", q.Corners(), wantCorners)
	}
	wantUVs := [4][2]float32{{0.1, 0.2}, {0.3, 0.2}, {0.1, 0.4}, {0.3, 0.4}}
	if q.CornerUVs() != wantUVs {
		t.Fatalf("CornerUVs() = %v, want %v", q.CornerUVs(), wantUVs)
	}
}

func BenchmarkFrameRingQueueQuads(b *testing.B) {
	r := newTestRing(1, 4096)
	quads := make([]Quad, 2048)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.BeginFrame(0); err != nil {
			b.Fatalf("beginFrame: %v", err)
		}
		if err := r.QueueQuads(0, quads); err != nil {
			b.Fatalf("queueQuads: %v", err)
		}
		if err := r.MarkEncoded(0, FrameStats{DrawCount: 1}, nil); err != nil {
			b.Fatalf("markEncoded: %v", err)
		}
		if err := r.EndFrame(0); err != nil {
			b.Fatalf("endFrame: %v", err)
		}
	}
}
