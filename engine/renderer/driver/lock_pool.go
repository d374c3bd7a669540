package driver

import "sync"

// LockPool hands out one mutex per queue. Vulkan requires external
// synchronization of every call that takes a VkQueue, and the graphics and
// present queue may be the same object.
type LockPool struct {
	mu     sync.Mutex
	queues map[Queue]*sync.Mutex
}

func NewLockPool() *LockPool {
	return &LockPool{queues: make(map[Queue]*sync.Mutex)}
}

func (p *LockPool) queueLock(q Queue) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.queues[q]
	if !ok {
		l = &sync.Mutex{}
		p.queues[q] = l
	}
	return l
}

// SafeQueueCall runs fn while holding the lock of queue q.
func (p *LockPool) SafeQueueCall(q Queue, fn func() error) error {
	l := p.queueLock(q)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Forget drops the lock of a queue whose device has been destroyed.
func (p *LockPool) Forget(q Queue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.queues, q)
}
