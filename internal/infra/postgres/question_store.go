package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// questionColumns selects a question with its options aggregated as JSON, ordered by order_index.
const questionColumns = `
	q.id, q.user_id, q.topic_id, q.type, q.statement,
	COALESCE(q.explanation, ''), COALESCE(q.difficulty, ''), q.is_active,
	COALESCE((
		SELECT json_agg(json_build_object(
			'id', o.id,
			'text', o.option_text,
			'correct', o.is_correct,
			'explanation', COALESCE(o.explanation, ''),
			'orderIndex', o.order_index
		) ORDER BY o.order_index, o.id)
		FROM question_options o
		WHERE o.question_id = q.id
	), '[]'::json)`

// QuestionStore reads questions, options and topic names from Postgres.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) FindQuestionByID(ctx context.Context, id int64) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) FindQuestions(ctx context.Context, query app.QuestionQuery) ([]domain.Question, error) {
	sql, args := buildQuestionQuery(query)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *QuestionStore) TopicNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM topics WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("topic names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// buildQuestionQuery renders the filter as positional SQL; results are shuffled by the database.
func buildQuestionQuery(query app.QuestionQuery) (string, []interface{}) {
	args := []interface{}{query.OwnerID}
	where := []string{"q.user_id = $1", "q.is_active"}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(query.TopicIDs) > 0 {
		where = append(where, "q.topic_id = ANY("+arg(query.TopicIDs)+")")
	}
	if query.Type != "" {
		where = append(where, "q.type = "+arg(string(query.Type)))
	}
	if query.Difficulty != "" {
		where = append(where, "q.difficulty = "+arg(string(query.Difficulty)))
	}
	if len(query.ExcludeIDs) > 0 {
		where = append(where, "NOT (q.id = ANY("+arg(query.ExcludeIDs)+"))")
	}
	if query.UnseenOrIncorrect {
		where = append(where, `NOT EXISTS (
			SELECT 1 FROM quiz_answers a
			JOIN quiz_attempts t ON t.id = a.attempt_id
			WHERE t.user_id = $1 AND a.question_id = q.id AND a.is_correct)`)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(questionColumns)
	b.WriteString(" FROM questions q WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY random()")
	if query.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(arg(query.Limit))
	}
	return b.String(), args
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		qtype   string
		diff    string
		options []byte
	)
	if err := row.Scan(&q.ID, &q.OwnerID, &q.TopicID, &qtype, &q.Statement, &q.Explanation, &diff, &q.Active, &options); err != nil {
		return domain.Question{}, err
	}
	q.Type = domain.QuestionType(qtype)
	q.Difficulty = domain.Difficulty(diff)
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("decode options: %w", err)
	}
	return q, nil
}
