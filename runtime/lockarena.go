// Package runtime handles per-room serialization, live-session
// registration, event propagation, and background jobs. It
// orchestrates the system without containing domain rules.
package runtime

import (
	"sync"
)

// LockArena hands out one exclusive writer lock per key (room id or
// workspace id). All state-mutating operations on a room run under
// its lock, which is what guarantees gapless sequence numbers,
// exactly-once invitation acceptance, and fan-out ordering. Locks are
// never evicted; the population is bounded by the number of rooms.
type LockArena struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockArena() *LockArena {
	return &LockArena{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the exclusive section for key and returns the unlock
// function.
func (a *LockArena) Lock(key string) func() {
	a.mu.Lock()
	lock, ok := a.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[key] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
