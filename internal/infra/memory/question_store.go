package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"
)

// AnswerHistory reports how often a user answered a question, used by the unseen bias.
type AnswerHistory interface {
	CountAnsweredByUserAndQuestion(ctx context.Context, ownerID, questionID int64) (answered, correct int, err error)
}

// QuestionStore is an in-memory question pool (useful for tests/demos).
// It implements app.QuestionStore and app.TopicDirectory.
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[int64]domain.Question
	topics    map[int64]string
	history   AnswerHistory

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionStore(topics map[int64]string, questions []domain.Question) *QuestionStore {
	s := &QuestionStore{
		questions: make(map[int64]domain.Question, len(questions)),
		topics:    make(map[int64]string, len(topics)),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for id, name := range topics {
		s.topics[id] = name
	}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return s
}

// UseHistory enables the unseen/incorrect filter.
func (s *QuestionStore) UseHistory(h AnswerHistory) {
	s.mu.Lock()
	s.history = h
	s.mu.Unlock()
}

// Put adds or replaces a question.
func (s *QuestionStore) Put(q domain.Question) {
	s.mu.Lock()
	s.questions[q.ID] = q
	s.mu.Unlock()
}

func (s *QuestionStore) FindQuestionByID(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionStore) FindQuestions(ctx context.Context, query app.QuestionQuery) ([]domain.Question, error) {
	s.mu.RLock()
	history := s.history
	pool := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if matches(q, query) {
			pool = append(pool, q)
		}
	}
	s.mu.RUnlock()

	// map iteration order is not a shuffle; sort first so the shuffle alone decides order
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	s.rndMu.Lock()
	s.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	s.rndMu.Unlock()

	out := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}
		if query.UnseenOrIncorrect && history != nil {
			_, correct, err := history.CountAnsweredByUserAndQuestion(ctx, query.OwnerID, q.ID)
			if err != nil {
				return nil, err
			}
			if correct > 0 {
				continue
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *QuestionStore) TopicNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := s.topics[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func matches(q domain.Question, query app.QuestionQuery) bool {
	if !q.Active || q.OwnerID != query.OwnerID {
		return false
	}
	if len(query.TopicIDs) > 0 && !containsID(query.TopicIDs, q.TopicID) {
		return false
	}
	if query.Type != "" && q.Type != query.Type {
		return false
	}
	if query.Difficulty != "" && q.Difficulty != query.Difficulty {
		return false
	}
	if containsID(query.ExcludeIDs, q.ID) {
		return false
	}
	return true
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
