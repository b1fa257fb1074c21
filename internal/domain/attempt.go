package domain

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how an attempt is presented to the user.
type Mode string

const (
	ModeStudy      Mode = "STUDY"
	ModeEvaluation Mode = "EVALUATION"
)

// SelectionFilters records how the questions of an attempt were chosen.
type SelectionFilters struct {
	TopicIDs         []int64        `json:"topicIds,omitempty"`
	Types            []QuestionType `json:"types,omitempty"`
	Difficulty       Difficulty     `json:"difficulty,omitempty"`
	RequestedCount   int            `json:"requestedCount"`
	PrioritizeUnseen bool           `json:"prioritizeUnseen"`
}

// Attempt is one user taking a quiz over a frozen question set.
// QuestionIDs is the only source of truth for which questions belong to it.
type Attempt struct {
	ID             uuid.UUID        `json:"id"`
	OwnerID        int64            `json:"ownerId"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     *time.Time       `json:"finishedAt,omitempty"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectCount   int              `json:"correctCount"`
	Mode           Mode             `json:"mode"`
	QuestionIDs    []int64          `json:"questionIds"`
	Filters        SelectionFilters `json:"filters"`
}

// Finished reports whether the attempt reached its terminal state.
func (a Attempt) Finished() bool {
	return a.FinishedAt != nil
}

// Contains reports whether questionID is part of the frozen question list.
func (a Attempt) Contains(questionID int64) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// StartedAttempt is returned when an attempt is created.
type StartedAttempt struct {
	Attempt   Attempt    `json:"attempt"`
	Questions []Question `json:"questions"`
}

// AnswerResult is returned for every accepted answer.
type AnswerResult struct {
	Answer       Answer   `json:"answer"`
	Question     Question `json:"question"`
	CorrectCount int      `json:"correctCount"`
}

// AttemptDetail is an attempt with its recorded answers.
type AttemptDetail struct {
	Attempt   Attempt    `json:"attempt"`
	Answers   []Answer   `json:"answers"`
	Questions []Question `json:"questions"`
}

// Breakdown aggregates correctness for a group of questions.
type Breakdown struct {
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
	Percentage float64 `json:"percentage"`
}

// QuestionResult is the per-question line of a report.
type QuestionResult struct {
	Index      int      `json:"index"`
	Question   Question `json:"question"`
	TopicName  string   `json:"topicName"`
	Answered   bool     `json:"answered"`
	UserAnswer string   `json:"userAnswer"`
	Correct    bool     `json:"correct"`
}

// Report is the scored view of an attempt.
type Report struct {
	AttemptID      uuid.UUID            `json:"attemptId"`
	Mode           Mode                 `json:"mode"`
	StartedAt      time.Time            `json:"startedAt"`
	FinishedAt     *time.Time           `json:"finishedAt,omitempty"`
	TotalQuestions int                  `json:"totalQuestions"`
	CorrectCount   int                  `json:"correctCount"`
	Score          float64              `json:"score"`
	ElapsedSeconds int64                `json:"elapsedSeconds"`
	Questions      []QuestionResult     `json:"questions"`
	ByTopic        map[string]Breakdown `json:"byTopic"`
	ByType         map[string]Breakdown `json:"byType"`
}

// HistoryEntry summarises a past attempt.
type HistoryEntry struct {
	AttemptID        uuid.UUID  `json:"attemptId"`
	Mode             Mode       `json:"mode"`
	TotalQuestions   int        `json:"totalQuestions"`
	CorrectAnswers   int        `json:"correctAnswers"`
	Score            float64    `json:"score"`
	TotalTimeSeconds int64      `json:"totalTimeSeconds"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
	Topics           []string   `json:"topics"`
}
