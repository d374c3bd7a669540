package driver

import (
	"errors"
	"sync"
	"testing"

	vk "github.com/goki/vulkan"
	. "github.com/onsi/gomega"
)

func TestResultClassification(t *testing.T) {
	g := NewWithT(t)

	g.Expect(ResultIsSuccess(vk.Success)).To(BeTrue())
	g.Expect(ResultIsSuccess(vk.Suboptimal)).To(BeTrue())
	g.Expect(ResultIsSuccess(vk.ErrorOutOfDate)).To(BeFalse())

	g.Expect(IsOutOfDate(vk.ErrorOutOfDate)).To(BeTrue())
	g.Expect(IsOutOfDate(vk.Suboptimal)).To(BeFalse())
	g.Expect(IsSuboptimal(vk.Suboptimal)).To(BeTrue())
	g.Expect(IsSuboptimal(vk.Success)).To(BeFalse())

	g.Expect(ResultString(vk.ErrorDeviceLost)).To(Equal("VK_ERROR_DEVICE_LOST"))
	g.Expect(ResultString(vk.Result(-12345))).To(Equal("VkResult(-12345)"))
}

func TestCheckWrapsResult(t *testing.T) {
	g := NewWithT(t)

	g.Expect(Check("vkQueueSubmit", vk.Success)).To(Succeed())

	err := Check("vkQueueSubmit", vk.ErrorDeviceLost)
	var re *ResultError
	g.Expect(errors.As(err, &re)).To(BeTrue())
	g.Expect(re.Op).To(Equal("vkQueueSubmit"))
	g.Expect(re.Result).To(Equal(vk.ErrorDeviceLost))
	g.Expect(err.Error()).To(Equal("vkQueueSubmit: VK_ERROR_DEVICE_LOST"))
}

func TestSafeStringsAndContains(t *testing.T) {
	g := NewWithT(t)

	g.Expect(SafeString("VK_KHR_surface")).To(Equal("VK_KHR_surface\x00"))
	g.Expect(SafeString("VK_KHR_surface\x00")).To(Equal("VK_KHR_surface\x00"))
	g.Expect(SafeStrings([]string{"a", "b\x00"})).To(Equal([]string{"a\x00", "b\x00"}))

	have := []string{"VK_KHR_surface\x00", "VK_KHR_swapchain"}
	g.Expect(Contains(have, "VK_KHR_surface")).To(BeTrue())
	g.Expect(Contains(have, "VK_KHR_swapchain\x00")).To(BeTrue())
	g.Expect(Contains(have, "VK_EXT_debug_utils")).To(BeFalse())
}

func TestLockPoolSerializesQueueCalls(t *testing.T) {
	g := NewWithT(t)

	p := NewLockPool()
	q := Queue(7)
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.SafeQueueCall(q, func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	g.Expect(maxSeen).To(Equal(1))

	boom := errors.New("boom")
	g.Expect(p.SafeQueueCall(q, func() error { return boom })).To(MatchError(boom))
	p.Forget(q)
	g.Expect(p.SafeQueueCall(q, func() error { return nil })).To(Succeed())
}
