package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:t"`

	ID             uuid.UUID               `bun:"id,pk,type:uuid"`
	OwnerID        int64                   `bun:"user_id,notnull"`
	StartedAt      time.Time               `bun:"started_at,notnull"`
	FinishedAt     *time.Time              `bun:"finished_at"`
	TotalQuestions int                     `bun:"total_questions,notnull"`
	CorrectCount   int                     `bun:"correct_count,notnull"`
	Mode           string                  `bun:"mode,notnull"`
	QuestionIDs    []int64                 `bun:"question_ids,array"`
	Filters        domain.SelectionFilters `bun:"config_json,type:jsonb"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		TotalQuestions: r.TotalQuestions,
		CorrectCount:   r.CorrectCount,
		Mode:           domain.Mode(r.Mode),
		QuestionIDs:    r.QuestionIDs,
		Filters:        r.Filters,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers,alias:a"`

	ID         uuid.UUID            `bun:"id,pk,type:uuid"`
	AttemptID  uuid.UUID            `bun:"attempt_id,type:uuid,notnull"`
	QuestionID int64                `bun:"question_id,notnull"`
	Payload    domain.AnswerPayload `bun:"user_answer_json,type:jsonb"`
	Correct    bool                 `bun:"is_correct,notnull"`
	AnsweredAt time.Time            `bun:"answered_at,notnull"`
}

func (r answerRow) toDomain() domain.Answer {
	return domain.Answer{
		ID:         r.ID,
		AttemptID:  r.AttemptID,
		QuestionID: r.QuestionID,
		Payload:    r.Payload,
		Correct:    r.Correct,
		AnsweredAt: r.AnsweredAt,
	}
}

// AttemptStore persists attempts and answers with bun. Mutations lock the attempt
// row (SELECT ... FOR UPDATE) so concurrent instances cannot interleave them.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	row := attemptRow{
		ID:             attempt.ID,
		OwnerID:        attempt.OwnerID,
		StartedAt:      attempt.StartedAt,
		FinishedAt:     attempt.FinishedAt,
		TotalQuestions: attempt.TotalQuestions,
		CorrectCount:   attempt.CorrectCount,
		Mode:           string(attempt.Mode),
		QuestionIDs:    attempt.QuestionIDs,
		Filters:        attempt.Filters,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, id uuid.UUID, ownerID int64) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).
		Where("t.id = ?", id).
		Where("t.user_id = ?", ownerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) AnswerExists(ctx context.Context, attemptID uuid.UUID, questionID int64) (bool, error) {
	return s.db.NewSelect().Model((*answerRow)(nil)).
		Where("a.attempt_id = ?", attemptID).
		Where("a.question_id = ?", questionID).
		Exists(ctx)
}

func (s *AttemptStore) RecordAnswer(ctx context.Context, answer domain.Answer) (domain.Attempt, error) {
	var attempt attemptRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAttempt(ctx, tx, &attempt, answer.AttemptID); err != nil {
			return err
		}
		if attempt.FinishedAt != nil {
			return domain.ErrAttemptFinished
		}

		row := answerRow{
			ID:         answer.ID,
			AttemptID:  answer.AttemptID,
			QuestionID: answer.QuestionID,
			Payload:    answer.Payload,
			Correct:    answer.Correct,
			AnsweredAt: answer.AnsweredAt,
		}
		res, err := tx.NewInsert().Model(&row).
			On("CONFLICT (attempt_id, question_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		if err := checkInserted(res); err != nil {
			return err
		}

		if !answer.Correct {
			return nil
		}
		if _, err := tx.NewUpdate().Table("quiz_attempts").
			Set("correct_count = correct_count + 1").
			Where("id = ?", attempt.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("increment correct count: %w", err)
		}
		attempt.CorrectCount++
		return nil
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt.toDomain(), nil
}

func (s *AttemptStore) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]domain.Answer, error) {
	var rows []answerRow
	if err := s.db.NewSelect().Model(&rows).
		Where("a.attempt_id = ?", attemptID).
		Order("a.answered_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.Answer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *AttemptStore) FinishAttempt(ctx context.Context, id uuid.UUID, ownerID int64, at time.Time) (domain.Attempt, int, error) {
	var (
		attempt  attemptRow
		previous int
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockAttempt(ctx, tx, &attempt, id); err != nil {
			return err
		}
		if attempt.OwnerID != ownerID {
			return domain.ErrAttemptNotFound
		}
		if attempt.FinishedAt != nil {
			return domain.ErrAttemptFinished
		}

		correct, err := tx.NewSelect().Model((*answerRow)(nil)).
			Where("a.attempt_id = ?", id).
			Where("a.is_correct").
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count correct answers: %w", err)
		}

		if _, err := tx.NewUpdate().Table("quiz_attempts").
			Set("finished_at = ?", at).
			Set("correct_count = ?", correct).
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		previous = attempt.CorrectCount
		attempt.CorrectCount = correct
		attempt.FinishedAt = &at
		return nil
	})
	if err != nil {
		return domain.Attempt{}, 0, err
	}
	return attempt.toDomain(), previous, nil
}

func (s *AttemptStore) ListAttempts(ctx context.Context, ownerID int64, mode domain.Mode, limit, offset int) ([]domain.Attempt, error) {
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows).
		Where("t.user_id = ?", ownerID).
		Order("t.started_at DESC", "t.id ASC")
	if mode != "" {
		q = q.Where("t.mode = ?", string(mode))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *AttemptStore) CountAnsweredByUserAndQuestion(ctx context.Context, ownerID, questionID int64) (int, int, error) {
	var answered, correct int
	err := s.db.NewSelect().
		ColumnExpr("count(*)").
		ColumnExpr("count(*) FILTER (WHERE a.is_correct)").
		TableExpr("quiz_answers AS a").
		Join("JOIN quiz_attempts AS t ON t.id = a.attempt_id").
		Where("t.user_id = ?", ownerID).
		Where("a.question_id = ?", questionID).
		Scan(ctx, &answered, &correct)
	if err != nil {
		return 0, 0, fmt.Errorf("count answers: %w", err)
	}
	return answered, correct, nil
}

func (s *AttemptStore) CountAttempts(ctx context.Context, ownerID int64) (int, error) {
	n, err := s.db.NewSelect().Model((*attemptRow)(nil)).
		Where("t.user_id = ?", ownerID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

func (s *AttemptStore) AnswerTallies(ctx context.Context, ownerID int64) (map[int64]domain.AnswerTally, error) {
	var rows []struct {
		QuestionID int64 `bun:"question_id"`
		Answered   int   `bun:"answered"`
		Correct    int   `bun:"correct"`
	}
	err := s.db.NewSelect().
		ColumnExpr("a.question_id").
		ColumnExpr("count(*) AS answered").
		ColumnExpr("count(*) FILTER (WHERE a.is_correct) AS correct").
		TableExpr("quiz_answers AS a").
		Join("JOIN quiz_attempts AS t ON t.id = a.attempt_id").
		Where("t.user_id = ?", ownerID).
		Group("a.question_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("answer tallies: %w", err)
	}
	out := make(map[int64]domain.AnswerTally, len(rows))
	for _, r := range rows {
		out[r.QuestionID] = domain.AnswerTally{Answered: r.Answered, Correct: r.Correct}
	}
	return out, nil
}

// checkInserted maps an ON CONFLICT DO NOTHING insert that wrote no row to
// domain.ErrDuplicateAnswer.
func checkInserted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert answer: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateAnswer
	}
	return nil
}

func lockAttempt(ctx context.Context, tx bun.Tx, row *attemptRow, id uuid.UUID) error {
	err := tx.NewSelect().Model(row).
		Where("t.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAttemptNotFound
	}
	return err
}
