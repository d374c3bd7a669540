//go:build !debug

package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
)

// Without the debug tag a second destroy is silently ignored.
func TestDestroyTwiceIsIgnored(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))

	rm, err := NewResourceMemory(f.dc, f.fi, f.rt, testMesh(), testTexture(4, 4))
	g.Expect(err).NotTo(HaveOccurred())
	buffer := rm.Uniforms[0]
	image := rm.Texture

	rm.Destroy()
	g.Expect(rm.Destroy).NotTo(Panic())
	g.Expect(buffer.Destroy).NotTo(Panic())
	g.Expect(image.Destroy).NotTo(Panic())

	f.rt.Destroy()
	g.Expect(f.rt.Destroy).NotTo(Panic())
	f.fi.Destroy()
	g.Expect(f.fi.Destroy).NotTo(Panic())
	f.dc.Destroy()
	g.Expect(f.dc.Destroy).NotTo(Panic())

	g.Expect(f.m.LiveTotal()).To(BeZero())
	g.Expect(f.m.DoubleFrees()).To(BeEmpty())
}

func TestBufferWriteOverflowReturnsError(t *testing.T) {
	g := NewWithT(t)
	f := newResourceFixture(t, drivertest.Device("gpu"))
	defer f.destroy()

	b, err := NewBuffer(f.dc.Driver(), f.dc.Device(), f.dc.Selection().Memory, 16,
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	g.Expect(err).NotTo(HaveOccurred())
	defer b.Destroy()

	g.Expect(b.Write(0, make([]byte, 4))).To(MatchError(ContainSubstring("not mapped")))
	_, err = b.Map()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(b.Write(8, make([]byte, 8))).To(Succeed())
	g.Expect(b.Write(8, make([]byte, 9))).To(MatchError(ContainSubstring("overflows")))
}
