package vulkan

import "github.com/spaghettifunk/ember/engine/core"

type teardownStep struct {
	name string
	fn   func()
}

// teardown collects release functions while a component is being built.
// If construction bails out, unwind runs them in reverse order; once the
// component is complete, release hands ownership over and unwind is a no-op.
//
//	td := &teardown{}
//	defer td.unwind()
//	...
//	td.release()
type teardown struct {
	steps    []teardownStep
	released bool
}

func (t *teardown) push(name string, fn func()) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

func (t *teardown) unwind() {
	if t.released {
		return
	}
	for i := len(t.steps) - 1; i >= 0; i-- {
		core.LogDebug("rolling back %s", t.steps[i].name)
		t.steps[i].fn()
	}
	t.steps = nil
}

func (t *teardown) release() {
	t.released = true
	t.steps = nil
}
