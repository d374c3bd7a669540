package math

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestClamp(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Clamp(5, 1, 3)).To(Equal(3))
	g.Expect(Clamp(0, 1, 3)).To(Equal(1))
	g.Expect(Clamp(uint32(2), 1, 3)).To(Equal(uint32(2)))
	g.Expect(Clamp(0.5, 0.0, 1.0)).To(Equal(0.5))
}

func TestUniformBufferObjectLayout(t *testing.T) {
	g := NewWithT(t)

	ubo := NewUniformBufferObject()
	g.Expect(UniformBufferObjectSize).To(Equal(uint64(3 * 16 * 4)))
	g.Expect(ubo.Bytes()).To(HaveLen(int(UniformBufferObjectSize)))
	g.Expect(ubo.Model[0][0]).To(Equal(float32(1)))
	g.Expect(ubo.Model[0][1]).To(Equal(float32(0)))
}

func TestPerspectiveFlipsY(t *testing.T) {
	g := NewWithT(t)

	ubo := NewUniformBufferObject()
	ubo.SetPerspective(45, 16.0/9.0, 0.1, 10)
	g.Expect(ubo.Proj[1][1]).To(BeNumerically("<", 0))
	g.Expect(ubo.Proj[0][0]).To(BeNumerically(">", 0))
}

func TestDegToRad(t *testing.T) {
	g := NewWithT(t)

	g.Expect(DegToRad(180)).To(BeNumerically("~", K_PI, 1e-6))
	g.Expect(RadToDeg(K_PI)).To(BeNumerically("~", 180, 1e-4))
}
