package textatlas

// AtlasRect is a packed sub-region of the atlas. Immutable once issued;
// coordinates are in texels, origin top-left.
type AtlasRect struct {
	X, Y uint32
	W, H uint32
}

// UV is the (u0, v0, u1, v1) texture-space rectangle derived from an
// AtlasRect and the atlas extent it was reserved against.
type UV struct {
	U0, V0, U1, V1 float32
}

// ToUV implements P2: toUV(r) = (x/W, y/H, (x+w)/W, (y+h)/H).
func (r AtlasRect) ToUV(extentW, extentH uint32) UV {
	fw := float32(extentW)
	fh := float32(extentH)
	return UV{
		U0: float32(r.X) / fw,
		V0: float32(r.Y) / fh,
		U1: float32(r.X+r.W) / fw,
		V1: float32(r.Y+r.H) / fh,
	}
}

// area reports the rect's texel area, used by the packer's tie-break.
func (r AtlasRect) area() uint64 {
	return uint64(r.W) * uint64(r.H)
}

// overlaps reports whether r and o share any texel.
func (r AtlasRect) overlaps(o AtlasRect) bool {
	if r.X+r.W <= o.X || o.X+o.W <= r.X {
		return false
	}
	if r.Y+r.H <= o.Y || o.Y+o.H <= r.Y {
		return false
	}
	return true
}
