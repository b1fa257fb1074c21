package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches questions in Redis as JSON and falls back to the backing store on miss.
// Questions are stored as: SET quiz:question:{id} {json}
// Filtered queries and topic lookups go straight to the backing store.
type QuestionCache struct {
	app.QuestionStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, store app.QuestionStore, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		QuestionStore: store,
		client:        client,
		ttl:           ttl,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) FindQuestionByID(ctx context.Context, id int64) (domain.Question, error) {
	if q, ok := c.get(ctx, id); ok {
		return q, nil
	}

	key := strconv.FormatInt(id, 10)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.get(ctx, id); ok {
			return q, nil
		}

		q, err := c.QuestionStore.FindQuestionByID(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		data, err := json.Marshal(q)
		if err == nil {
			if err := c.client.Set(ctx, questionKey(id), data, c.ttlWithJitter()).Err(); err != nil {
				log.Printf("question cache: set %d: %v", id, err)
			}
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops the cached copy of a question after it was edited.
func (c *QuestionCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, questionKey(id)).Err()
}

func (c *QuestionCache) get(ctx context.Context, id int64) (domain.Question, bool) {
	data, err := c.client.Get(ctx, questionKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("question cache: get %d: %v", id, err)
		}
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Question{}, false
	}
	return q, true
}

func questionKey(id int64) string {
	return "quiz:question:" + strconv.FormatInt(id, 10)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
