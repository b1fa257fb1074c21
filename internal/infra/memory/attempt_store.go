package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-attempt-engine/internal/domain"

	"github.com/google/uuid"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. A single
// mutex makes every operation atomic, including insert-if-absent of answers.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]domain.Attempt
	answers  map[uuid.UUID][]domain.Answer
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[uuid.UUID]domain.Attempt),
		answers:  make(map[uuid.UUID][]domain.Answer),
	}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	attempt.QuestionIDs = append([]int64(nil), attempt.QuestionIDs...)
	s.attempts[attempt.ID] = attempt
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, id uuid.UUID, ownerID int64) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok || attempt.OwnerID != ownerID {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) AnswerExists(_ context.Context, attemptID uuid.UUID, questionID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasAnswerLocked(attemptID, questionID), nil
}

func (s *AttemptStore) RecordAnswer(_ context.Context, answer domain.Answer) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[answer.AttemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.Finished() {
		return domain.Attempt{}, domain.ErrAttemptFinished
	}
	if s.hasAnswerLocked(answer.AttemptID, answer.QuestionID) {
		return domain.Attempt{}, domain.ErrDuplicateAnswer
	}

	s.answers[answer.AttemptID] = append(s.answers[answer.AttemptID], answer)
	if answer.Correct {
		attempt.CorrectCount++
		s.attempts[attempt.ID] = attempt
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Answer(nil), s.answers[attemptID]...), nil
}

func (s *AttemptStore) FinishAttempt(_ context.Context, id uuid.UUID, ownerID int64, at time.Time) (domain.Attempt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[id]
	if !ok || attempt.OwnerID != ownerID {
		return domain.Attempt{}, 0, domain.ErrAttemptNotFound
	}
	if attempt.Finished() {
		return domain.Attempt{}, 0, domain.ErrAttemptFinished
	}

	previous := attempt.CorrectCount
	correct := 0
	for _, a := range s.answers[id] {
		if a.Correct {
			correct++
		}
	}
	finishedAt := at
	attempt.FinishedAt = &finishedAt
	attempt.CorrectCount = correct
	s.attempts[id] = attempt
	return cloneAttempt(attempt), previous, nil
}

func (s *AttemptStore) ListAttempts(_ context.Context, ownerID int64, mode domain.Mode, limit, offset int) ([]domain.Attempt, error) {
	s.mu.RLock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.OwnerID != ownerID || (mode != "" && a.Mode != mode) {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if offset >= len(out) {
		return []domain.Attempt{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AttemptStore) CountAnsweredByUserAndQuestion(_ context.Context, ownerID, questionID int64) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answered, correct := 0, 0
	for attemptID, answers := range s.answers {
		if s.attempts[attemptID].OwnerID != ownerID {
			continue
		}
		for _, a := range answers {
			if a.QuestionID != questionID {
				continue
			}
			answered++
			if a.Correct {
				correct++
			}
		}
	}
	return answered, correct, nil
}

func (s *AttemptStore) CountAttempts(_ context.Context, ownerID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *AttemptStore) AnswerTallies(_ context.Context, ownerID int64) (map[int64]domain.AnswerTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]domain.AnswerTally)
	for attemptID, answers := range s.answers {
		if s.attempts[attemptID].OwnerID != ownerID {
			continue
		}
		for _, a := range answers {
			t := out[a.QuestionID]
			t.Answered++
			if a.Correct {
				t.Correct++
			}
			out[a.QuestionID] = t
		}
	}
	return out, nil
}

func (s *AttemptStore) hasAnswerLocked(attemptID uuid.UUID, questionID int64) bool {
	for _, a := range s.answers[attemptID] {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	a.QuestionIDs = append([]int64(nil), a.QuestionIDs...)
	if a.FinishedAt != nil {
		t := *a.FinishedAt
		a.FinishedAt = &t
	}
	return a
}
