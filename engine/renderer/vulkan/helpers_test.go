package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

type fakeWindow struct {
	width, height uint32
}

func (w *fakeWindow) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return 1, nil
}

func (w *fakeWindow) RequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface"}
}

func (w *fakeWindow) DrawableSize() (uint32, uint32) {
	return w.width, w.height
}

func testShaders() StaticShaders {
	spirv := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	return StaticShaders{Vertex: spirv, Fragment: spirv}
}

func testMesh() *metadata.MeshData {
	white := [3]float32{1, 1, 1}
	return &metadata.MeshData{
		Name: "quad",
		Vertices: []metadata.Vertex{
			{Position: [3]float32{-0.5, -0.5, 0}, Color: white, Texcoord: [2]float32{0, 0}},
			{Position: [3]float32{0.5, -0.5, 0}, Color: white, Texcoord: [2]float32{1, 0}},
			{Position: [3]float32{0.5, 0.5, 0}, Color: white, Texcoord: [2]float32{1, 1}},
			{Position: [3]float32{-0.5, 0.5, 0}, Color: white, Texcoord: [2]float32{0, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func testTexture(width, height uint32) *metadata.TextureData {
	return &metadata.TextureData{
		Name:   "checker",
		Width:  width,
		Height: height,
		Pixels: make([]byte, width*height*metadata.TextureChannelCount),
	}
}

func testContextOptions() ContextOptions {
	return ContextOptions{ApplicationName: "test", MSAA: true}
}

func newTestContext(t *testing.T, m *drivertest.Mock, win *fakeWindow) *DeviceContext {
	t.Helper()
	dc, err := NewDeviceContext(m, win, testContextOptions())
	NewWithT(t).Expect(err).NotTo(HaveOccurred())
	return dc
}

func testRendererOptions(framesInFlight uint32) RendererOptions {
	return RendererOptions{
		ApplicationName: "test",
		MSAA:            true,
		FramesInFlight:  framesInFlight,
		ClearColor:      [4]float32{0, 0, 0.2, 1},
		CullMode:        metadata.FaceCullModeBack,
		Shaders:         testShaders(),
		Mesh:            testMesh(),
		Texture:         testTexture(4, 4),
	}
}

// newTestRenderer builds a full renderer against m with an 800x600 window.
func newTestRenderer(t *testing.T, m *drivertest.Mock, framesInFlight uint32) (*VulkanRenderer, *fakeWindow) {
	t.Helper()
	win := &fakeWindow{width: 800, height: 600}
	vr := New(m, win, testRendererOptions(framesInFlight))
	NewWithT(t).Expect(vr.Initialize()).To(Succeed())
	return vr, win
}

func drawFrame(g *WithT, loop *FrameLoop) {
	ubo := math.NewUniformBufferObject()
	g.Expect(loop.DrawFrame(&ubo)).To(Succeed())
}

// finalLayouts replays the barrier log of image and returns the layout each
// mip level ends up in.
func finalLayouts(m *drivertest.Mock, image *Image) []vk.ImageLayout {
	layouts := make([]vk.ImageLayout, image.MipLevels)
	for _, b := range m.Barriers() {
		if b.Image != image.Handle {
			continue
		}
		for level := b.BaseMipLevel; level < b.BaseMipLevel+b.LevelCount; level++ {
			layouts[level] = b.NewLayout
		}
	}
	return layouts
}
