package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"quiz-attempt-engine/internal/domain"
)

// unknownTopic labels breakdown buckets for topics or questions that no longer exist.
const unknownTopic = "unknown"

// ResultBuilder produces scored reports. It has no side effects, so building
// the report of a completed attempt twice yields identical output.
type ResultBuilder struct {
	attempts  AttemptStore
	questions QuestionStore
	topics    TopicDirectory
	now       func() time.Time
}

func NewResultBuilder(attempts AttemptStore, questions QuestionStore, topics TopicDirectory, now func() time.Time) *ResultBuilder {
	if now == nil {
		now = time.Now
	}
	return &ResultBuilder{attempts: attempts, questions: questions, topics: topics, now: now}
}

// Build reads the answers of attempt and scores them against its frozen question list.
func (b *ResultBuilder) Build(ctx context.Context, attempt domain.Attempt) (domain.Report, error) {
	answers, err := b.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return domain.Report{}, err
	}
	byQuestion := make(map[int64]domain.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	questions, err := b.loadQuestions(ctx, attempt.QuestionIDs)
	if err != nil {
		return domain.Report{}, err
	}
	names, err := b.topicNames(ctx, questions)
	if err != nil {
		return domain.Report{}, err
	}

	report := domain.Report{
		AttemptID:      attempt.ID,
		Mode:           attempt.Mode,
		StartedAt:      attempt.StartedAt,
		FinishedAt:     attempt.FinishedAt,
		TotalQuestions: attempt.TotalQuestions,
		CorrectCount:   attempt.CorrectCount,
		Score:          percentage(attempt.CorrectCount, attempt.TotalQuestions),
		ElapsedSeconds: elapsedSeconds(attempt, b.now()),
		Questions:      make([]domain.QuestionResult, 0, len(attempt.QuestionIDs)),
		ByTopic:        make(map[string]domain.Breakdown),
		ByType:         make(map[string]domain.Breakdown),
	}

	for i, id := range attempt.QuestionIDs {
		q := questions[id]
		entry := domain.QuestionResult{
			Index:     i,
			Question:  q,
			TopicName: topicName(names, q.TopicID),
		}
		if a, ok := byQuestion[id]; ok {
			entry.Answered = true
			entry.UserAnswer = answerLabel(q, a.Payload)
			entry.Correct = a.Correct
		}
		report.Questions = append(report.Questions, entry)
		tally(report.ByTopic, entry.TopicName, entry.Correct)
		tally(report.ByType, typeKey(q.Type), entry.Correct)
	}
	finalize(report.ByTopic)
	finalize(report.ByType)
	return report, nil
}

func (b *ResultBuilder) loadQuestions(ctx context.Context, ids []int64) (map[int64]domain.Question, error) {
	out := make(map[int64]domain.Question, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		q, err := b.questions.FindQuestionByID(ctx, id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			// deleted since the attempt started; keep the entry so the report stays readable
			out[id] = domain.Question{ID: id}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load question %d: %w", id, err)
		}
		out[id] = q
	}
	return out, nil
}

func (b *ResultBuilder) topicNames(ctx context.Context, questions map[int64]domain.Question) (map[int64]string, error) {
	ids := make([]int64, 0, len(questions))
	seen := make(map[int64]struct{}, len(questions))
	for _, q := range questions {
		if _, ok := seen[q.TopicID]; ok || q.TopicID == 0 {
			continue
		}
		seen[q.TopicID] = struct{}{}
		ids = append(ids, q.TopicID)
	}
	if len(ids) == 0 || b.topics == nil {
		return map[int64]string{}, nil
	}
	return b.topics.TopicNames(ctx, ids)
}

func typeKey(t domain.QuestionType) string {
	if t == "" {
		return unknownTopic
	}
	return string(t)
}

func topicName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return unknownTopic
}

func tally(m map[string]domain.Breakdown, key string, correct bool) {
	b := m[key]
	b.Total++
	if correct {
		b.Correct++
	}
	m[key] = b
}

func finalize(m map[string]domain.Breakdown) {
	for k, b := range m {
		b.Percentage = percentage(b.Correct, b.Total)
		m[k] = b
	}
}

// percentage is correct/total*100 rounded to two decimals, 0 for an empty total.
func percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

func elapsedSeconds(a domain.Attempt, now time.Time) int64 {
	end := now
	if a.FinishedAt != nil {
		end = *a.FinishedAt
	}
	d := end.Sub(a.StartedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
