package app_test

import (
	"context"
	"fmt"
	"testing"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/infra/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner int64 = 7

func pool(n int, qtype domain.QuestionType, firstID int64) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:        firstID + int64(i),
			OwnerID:   owner,
			TopicID:   1,
			Type:      qtype,
			Statement: fmt.Sprintf("question %d", firstID+int64(i)),
			Active:    true,
			Options: []domain.Option{
				{ID: (firstID + int64(i)) * 10, Text: "right", Correct: true},
				{ID: (firstID+int64(i))*10 + 1, Text: "wrong"},
			},
		}
	}
	return out
}

func idSet(questions []domain.Question) map[int64]bool {
	out := make(map[int64]bool, len(questions))
	for _, q := range questions {
		out[q.ID] = true
	}
	return out
}

func TestSelectCapsAtDesiredCount(t *testing.T) {
	sel := app.NewSelector(memory.NewQuestionStore(nil, pool(20, domain.MultipleChoice, 1)))
	got, err := sel.Select(context.Background(), owner, app.Selection{DesiredCount: 5})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Len(t, idSet(got), 5)
}

func TestSelectBestEffortWhenPoolIsSmall(t *testing.T) {
	sel := app.NewSelector(memory.NewQuestionStore(nil, pool(4, domain.MultipleChoice, 1)))
	got, err := sel.Select(context.Background(), owner, app.Selection{DesiredCount: 10, PrioritizeUnseen: true})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true, 4: true}, idSet(got))
}

func TestSelectNoMatches(t *testing.T) {
	sel := app.NewSelector(memory.NewQuestionStore(nil, pool(4, domain.MultipleChoice, 1)))
	_, err := sel.Select(context.Background(), owner, app.Selection{DesiredCount: 3, Types: []domain.QuestionType{domain.Flashcard}})
	assert.ErrorIs(t, err, domain.ErrNoMatchingQuestions)
	assert.Equal(t, "No questions found matching the selected criteria", err.Error())
}

func TestSelectMultipleTypesFilteredInMemory(t *testing.T) {
	questions := append(pool(5, domain.MultipleChoice, 1), pool(5, domain.TrueFalse, 100)...)
	questions = append(questions, pool(5, domain.Flashcard, 200)...)
	sel := app.NewSelector(memory.NewQuestionStore(nil, questions))

	got, err := sel.Select(context.Background(), owner, app.Selection{
		DesiredCount: 8,
		Types:        []domain.QuestionType{domain.TrueFalse, domain.Flashcard},
	})
	require.NoError(t, err)
	assert.Len(t, got, 8)
	for _, q := range got {
		assert.NotEqual(t, domain.MultipleChoice, q.Type)
	}
}

func TestSelectPrioritizesUnseenAndIncorrect(t *testing.T) {
	ctx := context.Background()
	questions := memory.NewQuestionStore(nil, pool(6, domain.MultipleChoice, 1))
	attempts := memory.NewAttemptStore()
	questions.UseHistory(attempts)
	service := app.NewQuizService(attempts, questions, questions)

	// answer 1..4 correctly and 5 incorrectly; 6 stays unseen
	started, err := service.StartAttempt(ctx, owner, app.StartRequest{Count: 6})
	require.NoError(t, err)
	for _, q := range started.Questions {
		optionID := q.Options[0].ID
		if q.ID >= 5 {
			optionID = q.Options[1].ID
		}
		if q.ID == 6 {
			continue
		}
		_, err := service.SubmitAnswer(ctx, started.Attempt.ID, owner, q.ID, domain.SelectedOption(optionID))
		require.NoError(t, err)
	}

	sel := app.NewSelector(questions)
	for i := 0; i < 10; i++ {
		got, err := sel.Select(ctx, owner, app.Selection{DesiredCount: 2, PrioritizeUnseen: true})
		require.NoError(t, err)
		assert.Equal(t, map[int64]bool{5: true, 6: true}, idSet(got))
	}

	got, err := sel.Select(ctx, owner, app.Selection{DesiredCount: 4, PrioritizeUnseen: true})
	require.NoError(t, err)
	assert.Len(t, idSet(got), 4)
	assert.True(t, idSet(got)[5] && idSet(got)[6], "unseen and incorrect questions come first")
}

func TestSelectRejectsNonPositiveCount(t *testing.T) {
	sel := app.NewSelector(memory.NewQuestionStore(nil, pool(2, domain.MultipleChoice, 1)))
	_, err := sel.Select(context.Background(), owner, app.Selection{DesiredCount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)
}
