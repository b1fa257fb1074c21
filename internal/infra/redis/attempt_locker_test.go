package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAttemptLockerSetsAndReleasesKey(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewAttemptLocker(client, time.Second)
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists(lockKey(id)) {
		t.Fatalf("expected lock key to be set")
	}
	unlock()
	if mr.Exists(lockKey(id)) {
		t.Fatalf("expected lock key to be removed")
	}
}

func TestAttemptLockerBlocksUntilContextDone(t *testing.T) {
	_, client := newRedis(t)
	locker := NewAttemptLocker(client, time.Minute)
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, id); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
}

func TestAttemptLockerDoesNotReleaseForeignLock(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewAttemptLocker(client, time.Second)
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// simulate expiry and takeover by another holder
	mr.Set(lockKey(id), "someone-else")
	unlock()
	if got, _ := mr.Get(lockKey(id)); got != "someone-else" {
		t.Fatalf("foreign lock was released, value=%q", got)
	}
}

func TestAttemptLockerSerialises(t *testing.T) {
	_, client := newRedis(t)
	locker := NewAttemptLocker(client, time.Second)
	id := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), id)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
}
