package core

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestEventFireDeliversToListeners(t *testing.T) {
	g := NewWithT(t)

	g.Expect(EventFire(EventContext{Type: EVENT_CODE_RESIZED})).To(BeFalse())

	g.Expect(EventSystemInitialize()).To(BeTrue())
	t.Cleanup(func() { _ = EventSystemShutdown() })
	g.Expect(EventSystemInitialize()).To(BeFalse())

	var got []uint32
	g.Expect(EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) {
		se := ctx.Data.(*SystemEvent)
		got = append(got, se.WindowWidth, se.WindowHeight)
	})).To(BeTrue())

	g.Expect(EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})).To(BeFalse())
	g.Expect(EventFire(EventContext{
		Type: EVENT_CODE_RESIZED,
		Data: &SystemEvent{WindowWidth: 640, WindowHeight: 480},
	})).To(BeTrue())
	g.Expect(got).To(Equal([]uint32{640, 480}))
}
