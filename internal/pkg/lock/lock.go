// Package lock provides keyed locking used to serialize work on a single
// session or user.
package lock

import (
	"context"
	"sync"
	"time"
)

// KeyLock hands out one exclusive lock per int64 key. Locks for different
// keys never block each other.
type KeyLock struct {
	locks sync.Map // map[int64]chan struct{}
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{}
}

// slot returns the semaphore channel for key, creating it on first use.
func (kl *KeyLock) slot(key int64) chan struct{} {
	if v, ok := kl.locks.Load(key); ok {
		return v.(chan struct{})
	}
	actual, _ := kl.locks.LoadOrStore(key, make(chan struct{}, 1))
	return actual.(chan struct{})
}

// Lock acquires the lock for key, blocking until it is available.
func (kl *KeyLock) Lock(key int64) {
	kl.slot(key) <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key int64) {
	select {
	case <-kl.slot(key):
	default:
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired.
func (kl *KeyLock) TryLock(key int64) bool {
	select {
	case kl.slot(key) <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockContext acquires the lock for key or gives up when ctx is done.
func (kl *KeyLock) LockContext(ctx context.Context, key int64) error {
	select {
	case kl.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockTimeout executes fn while holding the lock for key. It returns
// ErrLockTimeout if the lock is not acquired within timeout, and ctx.Err()
// if ctx is cancelled first.
func (kl *KeyLock) WithLockTimeout(ctx context.Context, key int64, timeout time.Duration, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := kl.LockContext(lockCtx, key); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	defer kl.Unlock(key)

	return fn()
}

// IsLocked reports whether key is currently held.
// This is a point-in-time check and may change immediately after.
func (kl *KeyLock) IsLocked(key int64) bool {
	if v, ok := kl.locks.Load(key); ok {
		return len(v.(chan struct{})) == 1
	}
	return false
}
