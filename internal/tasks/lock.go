package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"golang.org/x/sync/semaphore"
)

// KeyedLock serializes holders of the same key while letting different keys proceed.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewKeyedLock creates an empty lock set.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyedEntry)}
}

// Acquire blocks until every key is held or ctx is done. Keys are taken in sorted order.
//
// The returned release must be called exactly once.
func (l *KeyedLock) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = uniqueSorted(keys)
	held := make([]string, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range keys {
		entry := l.ref(key)
		if err := entry.sem.Acquire(ctx, 1); err != nil {
			l.unref(key)
			release()
			return nil, fmt.Errorf("%w: waiting for %s: %v", shared.ErrRunInProgress, key, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// TryAcquire takes every key without waiting, or none of them.
func (l *KeyedLock) TryAcquire(keys ...string) (func(), bool) {
	keys = uniqueSorted(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		entry := l.ref(key)
		if !entry.sem.TryAcquire(1) {
			l.unref(key)
			for i := len(held) - 1; i >= 0; i-- {
				l.unlock(held[i])
			}
			return nil, false
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				l.unlock(held[i])
			}
		})
	}, true
}

func (l *KeyedLock) ref(key string) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedEntry{sem: semaphore.NewWeighted(1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLock) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.locks[key]; ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
	}
}

func (l *KeyedLock) unlock(key string) {
	l.mu.Lock()
	entry := l.locks[key]
	l.mu.Unlock()
	if entry != nil {
		entry.sem.Release(1)
	}
	l.unref(key)
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
