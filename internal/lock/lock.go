// Package lock provides per-key mutual exclusion for owner updates.
// Waiting is bounded by the caller's context.
package lock

import (
	"context"
	"sync"
)

type Locker interface {
	// Lock blocks until the key is held or ctx is done; the returned func releases it
	Lock(ctx context.Context, key string) (func(), error)
}

// Noop never blocks; used with the best-effort quota policy
type Noop struct{}

func (Noop) Lock(_ context.Context, _ string) (func(), error) {
	return func() {}, nil
}

// Memory serializes holders of the same key within one process
type Memory struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*keyLock)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.keys[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.keys[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				m.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, kl)
		return nil, ctx.Err()
	}
}

func (m *Memory) release(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.keys, key)
	}
}

// held reports the number of keys with holders or waiters
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
