package textatlas

import (
	"errors"
	"testing"
)

func TestPackerReserveNonOverlap(t *testing.T) {
	p := newPacker(512, 512, 8192)

	sizes := [][2]uint32{{16, 16}, {32, 8}, {8, 32}, {64, 64}, {4, 4}, {100, 50}}
	var got []AtlasRect
	for _, s := range sizes {
		r, err := p.reserve(s[0], s[1], DefaultPadding)
		if err != nil {
			t.Fatalf("reserve(%d,%d): %v", s[0], s[1], err)
		}
		if r.W != s[0] || r.H != s[1] {
			t.Fatalf("reserve(%d,%d) returned size %dx%d", s[0], s[1], r.W, r.H)
		}
		for _, o := range got {
			if r.overlaps(o) {
				t.Fatalf("rect %+v overlaps previously issued rect %+v", r, o)
			}
		}
		got = append(got, r)
	}
}

func TestPackerDeterministicTieBreak(t *testing.T) {
	// Two free rects tie on short-side score after an initial split; the
	// tie-break (smaller area, then smaller (y, x)) must pick the same
	// one on every run.
	p1 := newPacker(128, 64, 8192)
	p2 := newPacker(128, 64, 8192)

	// Drive both packers through the identical sequence; results must
	// be bit-identical (determinism, not just correctness).
	for _, p := range []*packer{p1, p2} {
		if _, err := p.reserve(32, 32, 0); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	r1, err1 := p1.reserve(16, 16, 0)
	r2, err2 := p2.reserve(16, 16, 0)
	if err1 != nil || err2 != nil {
		t.Fatalf("reserve errors: %v %v", err1, err2)
	}
	if r1 != r2 {
		t.Fatalf("non-deterministic packing: %+v vs %+v", r1, r2)
	}
}

func TestPackerGrowRequired(t *testing.T) {
	p := newPacker(16, 16, 8192)
	if _, err := p.reserve(16, 16, 0); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := p.reserve(8, 8, 0)
	var grow GrowRequired
	if !errors.As(err, &grow) {
		t.Fatalf("expected GrowRequired, got %v", err)
	}
	if grow.NeedW < 32 && grow.NeedH < 32 {
		t.Fatalf("expected doubled extent to fit 8x8 after full 16x16 consumption, got %+v", grow)
	}
}

func TestPackerAtlasFullAtMaxExtent(t *testing.T) {
	p := newPacker(16, 16, 16)
	if _, err := p.reserve(16, 16, 0); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err := p.reserve(1, 1, 0)
	if !errors.Is(err, ErrAtlasFull) {
		t.Fatalf("expected ErrAtlasFull, got %v", err)
	}
}

func TestPackerGrowPreservesExistingRectCoordinates(t *testing.T) {
	p := newPacker(16, 16, 8192)
	r1, err := p.reserve(16, 16, 0)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err = p.reserve(8, 8, 0)
	var grow GrowRequired
	if !errors.As(err, &grow) {
		t.Fatalf("expected GrowRequired, got %v", err)
	}
	p.growTo(grow.NeedW, grow.NeedH)

	r2, err := p.reserve(8, 8, 0)
	if err != nil {
		t.Fatalf("reserve after grow: %v", err)
	}
	if r1.overlaps(r2) {
		t.Fatalf("rect issued after grow %+v overlaps pre-grow rect %+v", r2, r1)
	}
	if r1.X != 0 || r1.Y != 0 || r1.W != 16 || r1.H != 16 {
		t.Fatalf("pre-grow rect coordinates changed: %+v", r1)
	}
}

func TestPackerUVDerivation(t *testing.T) {
	r := AtlasRect{X: 10, Y: 20, W: 30, H: 40}
	uv := r.ToUV(512, 512)
	want := UV{U0: 10.0 / 512, V0: 20.0 / 512, U1: 40.0 / 512, V1: 60.0 / 512}
	if uv != want {
		t.Fatalf("ToUV = %+v, want %+v", uv, want)
	}
}

func BenchmarkPackerReserve(b *testing.B) {
	p := newPacker(4096, 4096, 16384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.reserve(16, 16, DefaultPadding); err != nil {
			p = newPacker(4096, 4096, 16384)
		}
	}
}
