package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

type fakeService struct {
	mu       sync.Mutex
	steps    []string
	stop     chan struct{}
	stopOnce sync.Once
	initErr  error
}

func newFakeService() *fakeService {
	return &fakeService{stop: make(chan struct{})}
}

func (s *fakeService) step(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, name)
}

func (s *fakeService) Steps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

func (s *fakeService) Initialize() error {
	s.step("initialize")
	return s.initErr
}

func (s *fakeService) Run() error {
	s.step("run")
	<-s.stop
	s.step("run returned")
	return nil
}

func (s *fakeService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *fakeService) Shutdown() error {
	s.step("shutdown")
	return nil
}

func TestRunServiceHookOnlyStops(t *testing.T) {
	g := NewWithT(t)
	svc := newFakeService()

	var hook func()
	hookReturned := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunService(svc, func(h func()) { hook = h })
	}()
	g.Eventually(svc.Steps, time.Second).Should(ContainElement("run"))

	// Signal handlers call the hook on their own goroutine.
	go func() {
		hook()
		hookReturned <- svc.Steps()
	}()

	g.Eventually(done, time.Second).Should(Receive(BeNil()))
	g.Expect(svc.Steps()).To(Equal([]string{"initialize", "run", "run returned", "shutdown"}))
	g.Eventually(hookReturned, time.Second).Should(Receive(ContainElement("shutdown")))
}

func TestRunServiceShutsDownAfterFailedInitialize(t *testing.T) {
	g := NewWithT(t)
	svc := newFakeService()
	boom := errors.New("boom")
	svc.initErr = boom

	err := RunService(svc, func(func()) {})
	g.Expect(err).To(MatchError(boom))
	g.Expect(svc.Steps()).To(Equal([]string{"initialize", "shutdown"}))
}
