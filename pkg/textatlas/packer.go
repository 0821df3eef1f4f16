package textatlas

import "fmt"

// DefaultPadding is the border inset applied around every reserved rect
// to prevent bilinear sampling from bleeding into neighboring glyphs.
const DefaultPadding = 1

// GrowRequired is returned by reserve when no free rect can satisfy the
// request; it carries the minimum new extent the caller (GlyphAtlas)
// should grow to before retrying.
type GrowRequired struct {
	NeedW, NeedH uint32
}

func (g GrowRequired) Error() string {
	return fmt.Sprintf("textatlas: grow required to at least %dx%d", g.NeedW, g.NeedH)
}

// packer is the pure, allocation-aware rectangle packer described in
// spec.md §4.1. It holds no Vulkan state; GlyphAtlas drives it and
// reacts to GrowRequired by recreating the backing image.
type packer struct {
	extentW, extentH uint32
	maxExtent        uint32
	free             []AtlasRect
	live             []AtlasRect
}

func newPacker(w, h, maxExtent uint32) *packer {
	p := &packer{
		extentW:   w,
		extentH:   h,
		maxExtent: maxExtent,
	}
	p.free = []AtlasRect{{X: 0, Y: 0, W: w, H: h}}
	return p
}

// reserve packs a w*h rect (before padding) into the free-rectangle set,
// using best-short-side-fit with a guillotine split. Returns the padded,
// inset rect on success. On failure to fit, returns a GrowRequired, or
// ErrAtlasFull when growing up to maxExtent cannot help; the caller must
// extend this packer in place with growTo and call reserve again.
func (p *packer) reserve(w, h, padding uint32) (AtlasRect, error) {
	reqW := w + 2*padding
	reqH := h + 2*padding

	idx, ok := p.bestFit(reqW, reqH)
	if !ok {
		needW, needH := p.growTarget(reqW, reqH)
		if needW < reqW || needH < reqH || (needW <= p.extentW && needH <= p.extentH) {
			return AtlasRect{}, ErrAtlasFull
		}
		return AtlasRect{}, GrowRequired{NeedW: needW, NeedH: needH}
	}

	chosen := p.free[idx]
	p.free = append(p.free[:idx], p.free[idx+1:]...)
	p.split(chosen, reqW, reqH)

	padded := AtlasRect{
		X: chosen.X + padding,
		Y: chosen.Y + padding,
		W: w,
		H: h,
	}
	p.live = append(p.live, AtlasRect{X: chosen.X, Y: chosen.Y, W: reqW, H: reqH})
	return padded, nil
}

// bestFit scans free rects for the candidate minimizing
// min(free.w-req.w, free.h-req.h), breaking ties by smaller area then
// smaller (y, x) for determinism.
func (p *packer) bestFit(reqW, reqH uint32) (int, bool) {
	best := -1
	var bestScore int64 = -1
	for i, f := range p.free {
		if f.W < reqW || f.H < reqH {
			continue
		}
		score := int64(min32(f.W-reqW, f.H-reqH))
		if best == -1 {
			best, bestScore = i, score
			continue
		}
		if score < bestScore {
			best, bestScore = i, score
			continue
		}
		if score == bestScore && isBetterTie(f, p.free[best]) {
			best = i
		}
	}
	return best, best != -1
}

// isBetterTie reports whether candidate should replace current under
// the deterministic tie-break rule: smaller area, then smaller (y, x).
func isBetterTie(candidate, current AtlasRect) bool {
	ca, cc := candidate.area(), current.area()
	if ca != cc {
		return ca < cc
	}
	if candidate.Y != current.Y {
		return candidate.Y < current.Y
	}
	return candidate.X < current.X
}

// split performs a guillotine split of `chosen` around a reqW x reqH
// consumed region anchored at chosen's origin, along the shorter
// leftover axis: the smaller leftover strip takes the full side of
// chosen and the larger one is bounded by the consumed region.
func (p *packer) split(chosen AtlasRect, reqW, reqH uint32) {
	rightW := chosen.W - reqW
	bottomH := chosen.H - reqH

	if rightW == 0 && bottomH == 0 {
		return
	}

	// Shorter-axis guillotine rule: when the right leftover is no wider
	// than the bottom leftover is tall, the right strip spans chosen's
	// full height and the bottom strip only the consumed width;
	// otherwise the bottom strip spans the full width and the right
	// strip only the consumed height.
	if rightW <= bottomH {
		if rightW > 0 {
			p.free = append(p.free, AtlasRect{
				X: chosen.X + reqW, Y: chosen.Y,
				W: rightW, H: chosen.H,
			})
		}
		if bottomH > 0 {
			p.free = append(p.free, AtlasRect{
				X: chosen.X, Y: chosen.Y + reqH,
				W: reqW, H: bottomH,
			})
		}
	} else {
		if bottomH > 0 {
			p.free = append(p.free, AtlasRect{
				X: chosen.X, Y: chosen.Y + reqH,
				W: chosen.W, H: bottomH,
			})
		}
		if rightW > 0 {
			p.free = append(p.free, AtlasRect{
				X: chosen.X + reqW, Y: chosen.Y,
				W: rightW, H: reqH,
			})
		}
	}
}

// growTarget computes the minimum new extent satisfying spec.md §4.1:
// double the current smaller dimension, be >= the requested size, and
// clamp at maxExtent. The caller (reserve) turns a clamped result that
// is still smaller than the request, or no larger than the current
// extent, into AtlasFull.
func (p *packer) growTarget(reqW, reqH uint32) (uint32, uint32) {
	w, h := p.extentW, p.extentH
	if w <= h {
		w *= 2
	} else {
		h *= 2
	}
	for w < reqW {
		w *= 2
	}
	for h < reqH {
		h *= 2
	}
	if w > p.maxExtent {
		w = p.maxExtent
	}
	if h > p.maxExtent {
		h = p.maxExtent
	}
	return w, h
}

// growTo extends the packed area to a larger extent in place: it adds
// the newly available texels as free rects without disturbing existing
// free or live bookkeeping, so every rect reserved before the grow
// keeps its exact (x, y, w, h) — spec.md's "coordinates survive a grow,
// contents do not" guarantee. The added area is split into an L shape
// (a right-hand strip spanning the full new height, plus a bottom strip
// spanning only the old width) so the two new free rects never overlap.
func (p *packer) growTo(newW, newH uint32) {
	oldW, oldH := p.extentW, p.extentH
	if newW > oldW {
		p.free = append(p.free, AtlasRect{X: oldW, Y: 0, W: newW - oldW, H: newH})
	}
	if newH > oldH {
		p.free = append(p.free, AtlasRect{X: 0, Y: oldH, W: oldW, H: newH - oldH})
	}
	p.extentW, p.extentH = newW, newH
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
