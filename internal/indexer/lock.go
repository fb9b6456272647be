package indexer

import "sync"

// docLocks provides non-blocking per-document lock semantics, so two runs
// never write the same document at once
type docLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// TryAcquire attempts to lock id without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *docLocks) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[id]; busy {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// Release unlocks id.
// Must only be called by the goroutine that successfully acquired it.
func (l *docLocks) Release(id string) {
	l.mu.Lock()
	delete(l.held, id)
	l.mu.Unlock()
}
