package synonym

import "sync/atomic"

// refreshLock is a non-blocking lock guarding the single in-flight refresh
type refreshLock struct {
	state atomic.Int32 // 0 = idle, 1 = refreshing
}

// TryAcquire takes the lock if no refresh is running
func (l *refreshLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release must only be called by the holder
func (l *refreshLock) Release() {
	l.state.Store(0)
}
