package util

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// ReentryLock allows the owning goroutine to lock again without deadlocking.
// The layout cache is read under this lock from every partition worker and a
// cache miss compiles a layout while still holding it.
type ReentryLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner atomic.Int64
	count uint64
}

func NewReentryLock() *ReentryLock {
	lock := &ReentryLock{}
	lock.cond = sync.NewCond(&lock.mu)
	return lock
}

func (lock *ReentryLock) Lock() {
	rid := goid.Get()
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.owner.Load() == rid {
		lock.count++
		return
	}
	for lock.owner.Load() != 0 {
		lock.cond.Wait()
	}
	lock.owner.Store(rid)
	lock.count = 1
}

func (lock *ReentryLock) Unlock() {
	rid := goid.Get()
	lock.mu.Lock()
	AssertFunc(lock.owner.Load() == rid)
	lock.count--
	released := lock.count == 0
	if released {
		lock.owner.Store(0)
	}
	lock.mu.Unlock()
	if released {
		lock.cond.Signal()
	}
}
