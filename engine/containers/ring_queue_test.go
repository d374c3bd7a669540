package containers

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestRingQueueWrapsAround(t *testing.T) {
	g := NewWithT(t)

	rq := NewRingQueue[int](2)
	g.Expect(rq.IsEmpty()).To(BeTrue())
	_, err := rq.Dequeue()
	g.Expect(err).To(MatchError(ErrQueueEmpty))

	g.Expect(rq.Enqueue(1)).To(Succeed())
	g.Expect(rq.Enqueue(2)).To(Succeed())
	g.Expect(rq.IsFull()).To(BeTrue())
	g.Expect(rq.Enqueue(3)).To(MatchError(ErrQueueFull))

	v, err := rq.Dequeue()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(v).To(Equal(1))
	g.Expect(rq.Enqueue(3)).To(Succeed())

	front, err := rq.Peek()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(front).To(Equal(2))
	g.Expect(rq.Len()).To(Equal(2))

	for _, want := range []int{2, 3} {
		v, err := rq.Dequeue()
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(v).To(Equal(want))
	}
	g.Expect(rq.IsEmpty()).To(BeTrue())
}
