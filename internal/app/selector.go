package app

import (
	"context"

	"quiz-attempt-engine/internal/domain"
)

// Selection describes the questions wanted for a new attempt.
type Selection struct {
	TopicIDs         []int64
	Types            []domain.QuestionType
	Difficulty       domain.Difficulty
	DesiredCount     int
	PrioritizeUnseen bool
}

// Selector picks questions for new attempts. It never writes.
type Selector struct {
	questions QuestionStore
}

func NewSelector(questions QuestionStore) *Selector {
	return &Selector{questions: questions}
}

// Select returns at most sel.DesiredCount distinct questions in random order.
// A smaller result is accepted once the matching pool is exhausted.
func (s *Selector) Select(ctx context.Context, ownerID int64, sel Selection) ([]domain.Question, error) {
	want := sel.DesiredCount
	if want <= 0 {
		return nil, domain.ErrInvalidSelection
	}

	base := QuestionQuery{
		OwnerID:    ownerID,
		TopicIDs:   sel.TopicIDs,
		Difficulty: sel.Difficulty,
	}
	// The store filters on one type at most; wider type filters are applied
	// here, so the store cannot be trusted to cap the result.
	limit := want
	types := distinctTypes(sel.Types)
	switch len(types) {
	case 0:
	case 1:
		base.Type = types[0]
	default:
		limit = 0
	}

	var chosen []domain.Question
	seen := make(map[int64]struct{})
	add := func(batch []domain.Question) {
		for _, q := range batch {
			if len(chosen) >= want {
				return
			}
			if _, dup := seen[q.ID]; dup || !typeAllowed(q.Type, types) {
				continue
			}
			seen[q.ID] = struct{}{}
			chosen = append(chosen, q)
		}
	}

	if sel.PrioritizeUnseen {
		q := base
		q.UnseenOrIncorrect = true
		q.Limit = limit
		batch, err := s.questions.FindQuestions(ctx, q)
		if err != nil {
			return nil, err
		}
		add(batch)
	}

	if len(chosen) < want {
		q := base
		q.ExcludeIDs = idsOf(chosen)
		if limit > 0 {
			q.Limit = want - len(chosen)
		}
		batch, err := s.questions.FindQuestions(ctx, q)
		if err != nil {
			return nil, err
		}
		add(batch)
	}

	if len(chosen) == 0 {
		return nil, domain.ErrNoMatchingQuestions
	}
	if len(chosen) > want {
		chosen = chosen[:want]
	}
	return chosen, nil
}

func distinctTypes(types []domain.QuestionType) []domain.QuestionType {
	out := make([]domain.QuestionType, 0, len(types))
	seen := make(map[domain.QuestionType]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func typeAllowed(t domain.QuestionType, allowed []domain.QuestionType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

func idsOf(questions []domain.Question) []int64 {
	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}
