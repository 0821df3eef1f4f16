// Command textdemo exercises the textrender public API end to end
// against an in-memory Dispatch, proving the wiring between
// pkg/textatlas, pkg/textframe, and pkg/textrender without a real
// Vulkan device. It is the spiritual successor of cmd/triangle, which
// drove the teacher's minimal OpenGL path the same way.
package main

import (
	"fmt"
	"log/slog"
	"os"

	vk "github.com/vulkan-go/vulkan"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"github.com/GhostKellz/zeus-sub002/pkg/textatlas"
	"github.com/GhostKellz/zeus-sub002/pkg/textframe"
	"github.com/GhostKellz/zeus-sub002/pkg/textrender"
)

const (
	demoWidth  = 1280
	demoHeight = 720
)

func main() {
	textrender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dispatch := newNoopDispatch()

	r, err := textrender.Init(dispatch, textrender.Config{
		Extent:         [2]uint32{demoWidth, demoHeight},
		SurfaceFormat:  vk.FormatB8g8r8a8Unorm,
		FramesInFlight: 2,
		MaxInstances:   4096,
		BatchTarget:    2048,
		BatchMin:       64,
		BatchAutotune:  true,
		Shaders:        demoShaderBytecode(),
		Atlas: textatlas.Config{
			InitialWidth:    512,
			InitialHeight:   512,
			MaxExtent:       4096,
			StagingCapacity: 1 << 20,
		},
		Profiler: &textrender.ProfilerConfig{
			LogInterval: 60,
			Sink: textrender.ProfilerSinkFunc(func(s textrender.Summary) {
				slog.Info("frame summary", "summary", s.String())
			}),
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	closer.Bind(r.Deinit)
	defer closer.Close()

	atlas := r.GlyphAtlas()
	rect, err := atlas.ReserveRect(8, 16)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reserve rect:", err)
		os.Exit(1)
	}
	glyphBitmap := make([]byte, 8*16)
	for i := range glyphBitmap {
		glyphBitmap[i] = 0xFF
	}
	if err := atlas.Upload(rect, glyphBitmap); err != nil {
		fmt.Fprintln(os.Stderr, "upload:", err)
		os.Exit(1)
	}
	_, _, extentW, extentH := atlas.View()
	uv := rect.ToUV(extentW, extentH)

	projection := mgl32.Ortho2D(0, float32(demoWidth), float32(demoHeight), 0)

	for frame := 0; frame < 3; frame++ {
		bank := frame % 2
		if err := r.BeginFrame(bank); err != nil {
			fmt.Fprintln(os.Stderr, "beginFrame:", err)
			os.Exit(1)
		}
		if err := r.SetProjection(bank, [16]float32(projection)); err != nil {
			fmt.Fprintln(os.Stderr, "setProjection:", err)
			os.Exit(1)
		}
		if err := r.QueueQuad(bank, textframe.Quad{
			X: 100, Y: 100, W: 8, H: 16,
			U0: uv.U0, V0: uv.V0, U1: uv.U1, V1: uv.V1,
			R: 1, G: 1, B: 1, A: 1,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "queueQuad:", err)
			os.Exit(1)
		}
		if err := r.Encode(bank, vk.CommandBuffer(nil)); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(1)
		}
		stats, _ := r.FrameStats(bank)
		slog.Info("encoded frame", "frame", frame, "bank", bank, "glyph_count", stats.GlyphCount, "draw_count", stats.DrawCount)
		if err := r.EndFrame(bank); err != nil {
			fmt.Fprintln(os.Stderr, "endFrame:", err)
			os.Exit(1)
		}
	}
}

// demoShaderBytecode returns 4-byte-aligned placeholder SPIR-V blobs.
// A real integration supplies compiled shaders matching the contract
// in pkg/textrender/shader_contract.go; this demo only proves the
// renderer's own plumbing, not shader compilation.
func demoShaderBytecode() textrender.ShaderBytecode {
	return textrender.ShaderBytecode{
		Vertex:   make([]byte, 32),
		Fragment: make([]byte, 32),
	}
}
