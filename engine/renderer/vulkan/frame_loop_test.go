package vulkan

import (
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

func TestFrameIndexCycles(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	var seen []uint32
	for i := 0; i < 5; i++ {
		seen = append(seen, loop.FrameIndex())
		drawFrame(g, loop)
	}
	g.Expect(seen).To(Equal([]uint32{0, 1, 0, 1, 0}))
}

func TestTenFramesWithoutResize(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	loop := vr.Loop()
	draws := m.Draws()

	for i := 0; i < 10; i++ {
		drawFrame(g, loop)
		g.Expect(loop.Stage()).To(Equal(StagePresent))
	}
	g.Expect(loop.Recreations()).To(BeZero())
	g.Expect(m.Calls("QueuePresent")).To(Equal(10))
	g.Expect(m.Draws() - draws).To(Equal(10))
	g.Expect(loop.FrameIndex()).To(BeZero())

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestOutOfDateAtAcquire(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	m.QueueAcquireResults(vk.Success, vk.Success, vk.ErrorOutOfDate)
	drawFrame(g, loop)
	drawFrame(g, loop)
	oldTargets := loop.RenderTargets()
	slot := loop.FrameInterface().Slot(loop.FrameIndex())

	drawFrame(g, loop)
	g.Expect(loop.Stage()).To(Equal(StageImageAcquire))
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(loop.FrameIndex()).To(BeZero())
	g.Expect(loop.RenderTargets()).NotTo(BeIdenticalTo(oldTargets))
	g.Expect(oldTargets.Alive()).To(BeFalse())
	g.Expect(m.Live(drivertest.KindSwapchain)).To(Equal(1))
	g.Expect(m.Calls("QueuePresent")).To(Equal(2))
	// The fence was not reset, so the next wait on the slot returns.
	g.Expect(m.FenceSignaled(slot.InFlight.Handle)).To(BeTrue())

	drawFrame(g, loop)
	g.Expect(loop.FrameIndex()).To(Equal(uint32(1)))
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestSuboptimalAtAcquireFinishesFrame(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	m.QueueAcquireResults(vk.Suboptimal)
	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(1))
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(loop.FrameIndex()).To(BeZero())
}

func TestOutOfDateAtPresent(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	m.QueuePresentResults(vk.Success, vk.ErrorOutOfDate, vk.Suboptimal)
	drawFrame(g, loop)
	g.Expect(loop.FrameIndex()).To(Equal(uint32(1)))

	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(loop.FrameIndex()).To(Equal(uint32(1)))

	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(2)))
	g.Expect(loop.FrameIndex()).To(Equal(uint32(1)))

	drawFrame(g, loop)
	g.Expect(loop.FrameIndex()).To(BeZero())
}

func TestAcquireFailureIsReturned(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()

	m.QueueAcquireResults(vk.ErrorDeviceLost)
	ubo := math.NewUniformBufferObject()
	err := vr.Loop().DrawFrame(&ubo)
	var re *driver.ResultError
	g.Expect(err).To(BeAssignableToTypeOf(re))
	g.Expect(err.(*driver.ResultError).Result).To(Equal(vk.ErrorDeviceLost))
}

func TestRequestRecreate(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	vr.Resized(1024, 768)
	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(m.Calls("QueuePresent")).To(BeZero())

	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(m.Calls("QueuePresent")).To(Equal(1))
}

func TestMinimisedWindowPostponesRecreation(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, win := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()

	win.width, win.height = 0, 0
	vr.Resized(0, 0)
	for i := 0; i < 3; i++ {
		drawFrame(g, loop)
	}
	g.Expect(loop.Recreations()).To(BeZero())
	g.Expect(m.Calls("QueuePresent")).To(BeZero())
	g.Expect(loop.RenderTargets().Alive()).To(BeTrue())

	win.width, win.height = 800, 600
	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(1))
}

func TestSwapchainFailureSelectsNewDevice(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("primary"), integrated("fallback"))
	vr, _ := newTestRenderer(t, m, 2)
	loop := vr.Loop()
	drawFrame(g, loop)

	dc := loop.dc
	g.Expect(dc.Selection().Properties.Name).To(Equal("primary"))
	oldFrames := loop.FrameInterface()
	oldResources := loop.ResourceMemory()

	m.Devices[0].Formats = nil
	loop.RequestRecreate()
	drawFrame(g, loop)

	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(dc.Selection().Properties.Name).To(Equal("fallback"))
	g.Expect(oldFrames.Alive()).To(BeFalse())
	g.Expect(oldResources.Alive()).To(BeFalse())
	g.Expect(loop.FrameInterface()).NotTo(BeIdenticalTo(oldFrames))
	g.Expect(m.Live(drivertest.KindDevice)).To(Equal(1))
	g.Expect(m.Live(drivertest.KindCommandPool)).To(Equal(1))
	g.Expect(m.Live(drivertest.KindFence)).To(Equal(2))

	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(2))

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestShutdownAfterFailedRebuild(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)

	m.FailOn("CreateSwapchain", 1)
	vr.Resized(800, 600)
	ubo := math.NewUniformBufferObject()
	g.Expect(vr.Loop().DrawFrame(&ubo)).NotTo(Succeed())

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestFailedRecreateIsRetriedOnNextFrame(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	loop := vr.Loop()
	drawFrame(g, loop)

	m.FailOn("CreateSwapchain", 1)
	vr.Resized(800, 600)
	ubo := math.NewUniformBufferObject()
	g.Expect(loop.DrawFrame(&ubo)).NotTo(Succeed())
	g.Expect(loop.RenderTargets().Alive()).To(BeFalse())
	g.Expect(loop.Recreations()).To(BeZero())
	presents := m.Calls("QueuePresent")

	// The retry rebuilds without recording into the missing targets.
	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(loop.RenderTargets().Alive()).To(BeTrue())
	g.Expect(m.Calls("QueuePresent")).To(Equal(presents))

	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(presents + 1))
	g.Expect(m.Live(drivertest.KindSwapchain)).To(Equal(1))

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestFailedDeviceRebuildIsRetriedOnNextFrame(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("primary"), integrated("fallback"))
	vr, _ := newTestRenderer(t, m, 2)
	loop := vr.Loop()
	drawFrame(g, loop)
	oldResources := loop.ResourceMemory()

	m.Devices[0].Formats = nil
	m.FailOn("CreateSampler", 1)
	loop.RequestRecreate()
	ubo := math.NewUniformBufferObject()
	g.Expect(loop.DrawFrame(&ubo)).NotTo(Succeed())

	// Nothing half built is installed.
	g.Expect(loop.ResourceMemory()).To(BeIdenticalTo(oldResources))
	g.Expect(loop.ResourceMemory().Alive()).To(BeFalse())
	g.Expect(loop.FrameInterface().Alive()).To(BeFalse())
	g.Expect(loop.RenderTargets().Alive()).To(BeFalse())
	g.Expect(m.Live(drivertest.KindCommandPool)).To(BeZero())
	g.Expect(m.Live(drivertest.KindSwapchain)).To(BeZero())

	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(loop.dc.Selection().Properties.Name).To(Equal("fallback"))
	g.Expect(loop.ResourceMemory().Alive()).To(BeTrue())
	g.Expect(m.Live(drivertest.KindDevice)).To(Equal(1))

	presents := m.Calls("QueuePresent")
	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(presents + 1))

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestNoDeviceLeftRetriesSelection(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	loop := vr.Loop()
	formats := m.Devices[0].Formats

	m.Devices[0].Formats = nil
	loop.RequestRecreate()
	ubo := math.NewUniformBufferObject()
	g.Expect(loop.DrawFrame(&ubo)).NotTo(Succeed())
	g.Expect(loop.DrawFrame(&ubo)).NotTo(Succeed())
	g.Expect(m.Live(drivertest.KindDevice)).To(BeZero())

	m.Devices[0].Formats = formats
	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(1))

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

// switchableShaders fails to load the vertex stage while broken is set.
type switchableShaders struct {
	StaticShaders
	broken bool
}

func (s *switchableShaders) VertexShader() ([]uint32, error) {
	if s.broken {
		return nil, core.ErrShaderMalformed
	}
	return s.StaticShaders.VertexShader()
}

func TestShaderReloadKeepsLastGoodCode(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	shaders := &switchableShaders{StaticShaders: testShaders()}
	opts := testRendererOptions(2)
	opts.Shaders = shaders
	vr := New(m, &fakeWindow{width: 800, height: 600}, opts)
	g.Expect(vr.Initialize()).To(Succeed())
	loop := vr.Loop()

	shaders.broken = true
	vr.ReloadShaders()
	drawFrame(g, loop)
	g.Expect(loop.Recreations()).To(Equal(uint64(1)))
	g.Expect(m.Live(drivertest.KindPipeline)).To(Equal(1))

	drawFrame(g, loop)
	g.Expect(m.Calls("QueuePresent")).To(Equal(1))

	g.Expect(vr.Shutdown()).To(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
}

func TestBrokenShaderFailsFirstBuild(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	opts := testRendererOptions(2)
	opts.Shaders = &switchableShaders{StaticShaders: testShaders(), broken: true}

	vr := New(m, &fakeWindow{width: 800, height: 600}, opts)
	g.Expect(vr.Initialize()).To(MatchError(core.ErrShaderMalformed))
	g.Expect(m.LiveTotal()).To(BeZero())
}

func TestFrameSubmissionWiring(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()
	loop := vr.Loop()
	fi, rt, rm := loop.FrameInterface(), loop.RenderTargets(), loop.ResourceMemory()
	slot, cb := fi.Slot(0), fi.CommandBuffer(0)
	uploads := len(m.Submissions())

	drawFrame(g, loop)

	submits := m.Submissions()
	g.Expect(submits).To(HaveLen(uploads + 1))
	submit := submits[uploads]
	g.Expect(submit.Queue).To(Equal(fi.GraphicsQueue()))
	g.Expect(submit.CommandBuffers).To(Equal([]driver.CommandBuffer{cb.Handle}))
	g.Expect(submit.Wait).To(Equal([]driver.Semaphore{slot.ImageAvailable}))
	g.Expect(submit.WaitStages).To(Equal([]vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}))
	g.Expect(submit.Signal).To(Equal([]driver.Semaphore{slot.RenderFinished}))
	g.Expect(submit.Fence).To(Equal(slot.InFlight.Handle))

	presents := m.Presents()
	g.Expect(presents).To(HaveLen(1))
	present := presents[0]
	g.Expect(present.Queue).To(Equal(fi.PresentQueue()))
	g.Expect(present.Wait).To(Equal([]driver.Semaphore{slot.RenderFinished}))
	g.Expect(present.Swapchain).To(Equal(rt.Swapchain))

	cmds := m.Commands(cb.Handle)
	var ops []string
	for _, c := range cmds {
		ops = append(ops, c.Op)
	}
	g.Expect(ops).To(Equal([]string{
		"CmdBeginRenderPass",
		"CmdBindPipeline",
		"CmdBindVertexBuffer",
		"CmdBindIndexBuffer",
		"CmdSetViewport",
		"CmdSetScissor",
		"CmdBindDescriptorSet",
		"CmdDrawIndexed",
		"CmdEndRenderPass",
	}))
	g.Expect(cmds[0].Handle).To(Equal(driver.Handle(rt.Framebuffers[present.ImageIndex].Handle)))
	g.Expect(cmds[1].Handle).To(Equal(driver.Handle(rt.Pipeline.Handle)))
	g.Expect(cmds[2].Handle).To(Equal(driver.Handle(rm.VertexBuffer.Handle)))
	g.Expect(cmds[3].Handle).To(Equal(driver.Handle(rm.IndexBuffer.Handle)))
	g.Expect(cmds[6].Handle).To(Equal(driver.Handle(rm.DescriptorSet(0))))
	g.Expect(cmds[7].IndexCount).To(Equal(uint32(len(testMesh().Indices))))

	drawFrame(g, loop)
	second := m.Submissions()[uploads+1]
	g.Expect(second.Wait).To(Equal([]driver.Semaphore{fi.Slot(1).ImageAvailable}))
	g.Expect(second.Fence).To(Equal(fi.Slot(1).InFlight.Handle))
	g.Expect(m.Presents()[1].Wait).To(Equal([]driver.Semaphore{fi.Slot(1).RenderFinished}))
}

func TestShaderReloadWhileShuttingDown(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				vr.ReloadShaders()
			}
		}
	}()

	g.Expect(vr.Shutdown()).To(Succeed())
	close(stop)
	wg.Wait()

	vr.ReloadShaders()
	g.Expect(vr.Loop()).To(BeNil())
	g.Expect(vr.Shutdown()).To(MatchError(errNotInitialized))
	g.Expect(m.LiveTotal()).To(BeZero())
}

func TestRendererWritesCameraMatrices(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	vr, _ := newTestRenderer(t, m, 2)
	defer vr.Shutdown()

	camera := components.NewCamera()
	packet := &metadata.RenderPacket{Camera: camera}
	packet.Model.Identity()
	g.Expect(vr.DrawFrame(packet)).To(Succeed())
	g.Expect(vr.FrameNumber).To(Equal(uint64(1)))

	want := math.NewUniformBufferObject()
	want.View = camera.View()
	want.SetPerspective(45, 800.0/600.0, 0.1, 10)
	got := m.MemoryContents(vr.Loop().ResourceMemory().Uniforms[0].Memory)
	g.Expect(got[:math.UniformBufferObjectSize]).To(Equal(want.Bytes()))
}

func TestRendererInitializeRollback(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	m.FailOn("CreateSampler", 1)

	vr := New(m, &fakeWindow{width: 800, height: 600}, testRendererOptions(2))
	g.Expect(vr.Initialize()).NotTo(Succeed())
	g.Expect(m.LiveTotal()).To(BeZero())
	g.Expect(vr.Shutdown()).To(MatchError(errNotInitialized))
}

func TestFrameStageString(t *testing.T) {
	g := NewWithT(t)
	g.Expect(StageFenceWait.String()).To(Equal("fence wait"))
	g.Expect(StagePresent.String()).To(Equal("present"))
	g.Expect(StageIdle.String()).To(Equal("idle"))
}
