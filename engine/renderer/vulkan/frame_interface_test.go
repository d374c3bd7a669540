package vulkan

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
)

func TestFrameInterfaceRoundTrip(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	dc := newTestContext(t, m, &fakeWindow{width: 800, height: 600})
	defer dc.Destroy()
	baseline := m.LiveSnapshot()

	fi, err := NewFrameInterface(dc, 2)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fi.FramesInFlight()).To(Equal(uint32(2)))
	g.Expect(m.Live(drivertest.KindCommandPool)).To(Equal(1))
	g.Expect(m.Live(drivertest.KindCommandBuffer)).To(Equal(2))
	g.Expect(m.Live(drivertest.KindSemaphore)).To(Equal(4))
	g.Expect(m.Live(drivertest.KindFence)).To(Equal(2))

	for i := uint32(0); i < 2; i++ {
		slot := fi.Slot(i)
		g.Expect(slot.InFlight.IsSignaled).To(BeTrue())
		g.Expect(m.FenceSignaled(slot.InFlight.Handle)).To(BeTrue())
		g.Expect(slot.ImageAvailable).NotTo(Equal(slot.RenderFinished))
		g.Expect(fi.CommandBuffer(i).State).To(Equal(COMMAND_BUFFER_STATE_READY))
	}
	g.Expect(fi.GraphicsQueue()).To(Equal(fi.PresentQueue()))

	fi.Destroy()
	g.Expect(m.LiveSnapshot()).To(Equal(baseline))
	g.Expect(m.DoubleFrees()).To(BeEmpty())
}

func TestFrameInterfaceRejectsFrameCount(t *testing.T) {
	g := NewWithT(t)
	m := drivertest.New(drivertest.Device("gpu"))
	dc := newTestContext(t, m, &fakeWindow{width: 800, height: 600})
	defer dc.Destroy()

	_, err := NewFrameInterface(dc, 0)
	g.Expect(err).To(HaveOccurred())
	_, err = NewFrameInterface(dc, 4)
	g.Expect(err).To(HaveOccurred())
}

func TestFrameInterfaceRollback(t *testing.T) {
	steps := []struct {
		op string
		n  int
	}{
		{"CreateCommandPool", 1},
		{"AllocateCommandBuffers", 2},
		{"CreateSemaphore", 1},
		{"CreateSemaphore", 4},
		{"CreateFence", 1},
		{"CreateFence", 2},
	}
	for _, step := range steps {
		t.Run(step.op, func(t *testing.T) {
			g := NewWithT(t)
			m := drivertest.New(drivertest.Device("gpu"))
			dc := newTestContext(t, m, &fakeWindow{width: 800, height: 600})
			defer dc.Destroy()
			baseline := m.LiveSnapshot()

			m.FailOn(step.op, step.n)
			_, err := NewFrameInterface(dc, 2)
			g.Expect(err).To(HaveOccurred())
			g.Expect(m.LiveSnapshot()).To(Equal(baseline))
			g.Expect(m.DoubleFrees()).To(BeEmpty())
		})
	}
}
