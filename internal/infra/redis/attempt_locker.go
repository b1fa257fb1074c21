package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when the lock could not be taken before the context ended.
var ErrLockTimeout = errors.New("attempt lock not acquired")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AttemptLocker serialises mutations of one attempt across service instances.
// Locks are stored as: SET quiz:attempt:{id}:lock {token} NX PX {ttl}
// The TTL bounds how long a crashed holder can block the attempt.
type AttemptLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewAttemptLocker(client *redis.Client, ttl time.Duration) *AttemptLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &AttemptLocker{client: client, ttl: ttl, retry: 10 * time.Millisecond}
}

// Lock blocks until the attempt lock is held or ctx is done.
func (l *AttemptLocker) Lock(ctx context.Context, attemptID uuid.UUID) (func(), error) {
	key := lockKey(attemptID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() {
		// ctx may already be cancelled here
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

func lockKey(id uuid.UUID) string {
	return "quiz:attempt:" + id.String() + ":lock"
}
