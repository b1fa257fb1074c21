package app

import (
	"context"
	"time"

	"quiz-attempt-engine/internal/domain"

	"github.com/google/uuid"
)

// QuestionQuery narrows the question pool. Results come back in random order.
type QuestionQuery struct {
	OwnerID  int64
	TopicIDs []int64
	// Type is a single-value hint; multi-type filters are applied by the selector.
	Type       domain.QuestionType
	Difficulty domain.Difficulty
	// UnseenOrIncorrect keeps questions the owner never answered correctly.
	UnseenOrIncorrect bool
	ExcludeIDs        []int64
	// Limit of 0 means no limit.
	Limit int
}

// QuestionStore reads questions maintained by the question CRUD layer.
type QuestionStore interface {
	FindQuestions(ctx context.Context, q QuestionQuery) ([]domain.Question, error)
	// FindQuestionByID also returns inactive questions.
	FindQuestionByID(ctx context.Context, id int64) (domain.Question, error)
}

// TopicDirectory resolves topic display names.
type TopicDirectory interface {
	TopicNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// AttemptStore persists attempts and their answers.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	// GetAttempt returns domain.ErrAttemptNotFound when missing or owned by someone else.
	GetAttempt(ctx context.Context, id uuid.UUID, ownerID int64) (domain.Attempt, error)
	AnswerExists(ctx context.Context, attemptID uuid.UUID, questionID int64) (bool, error)
	// RecordAnswer inserts the answer and, when it is correct, increments the attempt's
	// correct count in the same unit of work. It fails with domain.ErrDuplicateAnswer or
	// domain.ErrAttemptFinished without side effects.
	RecordAnswer(ctx context.Context, answer domain.Answer) (domain.Attempt, error)
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]domain.Answer, error)
	// FinishAttempt recounts correct answers, sets finishedAt and returns the updated attempt
	// together with the counter value it replaced.
	FinishAttempt(ctx context.Context, id uuid.UUID, ownerID int64, at time.Time) (domain.Attempt, int, error)
	// ListAttempts returns the owner's attempts newest first; an empty mode matches all.
	ListAttempts(ctx context.Context, ownerID int64, mode domain.Mode, limit, offset int) ([]domain.Attempt, error)
	CountAnsweredByUserAndQuestion(ctx context.Context, ownerID, questionID int64) (answered, correct int, err error)
	CountAttempts(ctx context.Context, ownerID int64) (int, error)
	// AnswerTallies groups the owner's answers across all attempts by question id.
	AnswerTallies(ctx context.Context, ownerID int64) (map[int64]domain.AnswerTally, error)
}

// AttemptLocker serialises mutations of a single attempt.
type AttemptLocker interface {
	Lock(ctx context.Context, attemptID uuid.UUID) (unlock func(), err error)
}
