// Package synch provides the coordination primitives the filesystem layers
// are written against: a lock that knows which thread id owns it, and Mesa
// condition variables over such locks. Thread ids are explicit because the
// directory-usage and open-file tables key their protocols on them.
package synch

import (
	"log"
	"sync"
)

// A Lock is a mutex owned by a thread id. Acquire by the holder and
// Release by a non-holder are programming errors.
type Lock struct {
	name  string
	mu    sync.Mutex
	cv    *sync.Cond
	held  bool
	owner int
}

func NewLock(name string) *Lock {
	l := &Lock{name: name}
	l.cv = sync.NewCond(&l.mu)
	return l
}

func (l *Lock) Acquire(tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held && l.owner == tid {
		log.Fatalf("synch: lock %q re-acquired by holder %d", l.name, tid)
	}
	for l.held {
		l.cv.Wait()
	}
	l.held = true
	l.owner = tid
}

func (l *Lock) Release(tid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held || l.owner != tid {
		log.Fatalf("synch: lock %q released by %d, not the holder", l.name, tid)
	}
	l.held = false
	l.cv.Signal()
}

// HeldBy reports whether tid currently owns the lock.
func (l *Lock) HeldBy(tid int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held && l.owner == tid
}
