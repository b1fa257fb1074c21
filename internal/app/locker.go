package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// localLocker is the in-process AttemptLocker used when no shared lock is configured.
type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[uuid.UUID]*lockEntry)}
}

func (l *localLocker) Lock(ctx context.Context, attemptID uuid.UUID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[attemptID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.locks[attemptID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(attemptID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.release(attemptID, entry)
		})
	}, nil
}

func (l *localLocker) release(attemptID uuid.UUID, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, attemptID)
	}
}
