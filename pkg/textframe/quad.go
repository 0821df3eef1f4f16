// Package textframe owns the per-in-flight-frame instance state
// (Component C, FrameRing, in spec.md §2/§4.3).
package textframe

// Quad is the 48-byte per-instance record the instanced draw consumes:
// screen-space position/size, atlas UV rect, and RGBA color. Field
// order matches the vertex shader's per-instance attribute layout
// (locations 0-3) documented in shader_contract.go.
type Quad struct {
	X, Y          float32
	W, H          float32
	U0, V0, U1, V1 float32
	R, G, B, A    float32
}

// SizeOf is the POD size of Quad in bytes: 12 float32 fields * 4 bytes.
const SizeOf = 48

// Corners returns the four screen-space corners a Quad's vertex shader
// would emit for gl_VertexIndex 0..3, per spec.md P8: p, p+(w,0),
// p+(0,h), p+w,h.
func (q Quad) Corners() [4][2]float32 {
	return [4][2]float32{
		{q.X, q.Y},
		{q.X + q.W, q.Y},
		{q.X, q.Y + q.H},
		{q.X + q.W, q.Y + q.H},
	}
}

// CornerUVs returns the four UVs matching Corners(), per spec.md P8:
// (u0,v0), (u1,v0), (u0,v1), (u1,v1).
func (q Quad) CornerUVs() [4][2]float32 {
	return [4][2]float32{
		{q.U0, q.V0},
		{q.U1, q.V0},
		{q.U0, q.V1},
		{q.U1, q.V1},
	}
}
