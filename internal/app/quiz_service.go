package app

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"quiz-attempt-engine/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultMaxQuestions = 100
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	recentAttemptsLimit = 10
)

// StartRequest carries the parameters of a new attempt.
type StartRequest struct {
	TopicIDs         []int64
	Types            []domain.QuestionType
	Difficulty       domain.Difficulty
	Count            int
	Mode             domain.Mode
	PrioritizeUnseen bool
}

// QuizService contains the attempt use cases: start, answer, finish and read back.
type QuizService struct {
	attempts     AttemptStore
	questions    QuestionStore
	topics       TopicDirectory
	locker       AttemptLocker
	selector     *Selector
	results      *ResultBuilder
	now          func() time.Time
	maxQuestions int
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithLocker replaces the in-process per-attempt lock, e.g. with a Redis lock
// when several instances share one database.
func WithLocker(l AttemptLocker) Option {
	return func(s *QuizService) { s.locker = l }
}

// WithMaxQuestions caps the number of questions per attempt.
func WithMaxQuestions(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.maxQuestions = n
		}
	}
}

func NewQuizService(attempts AttemptStore, questions QuestionStore, topics TopicDirectory, opts ...Option) *QuizService {
	s := &QuizService{
		attempts:     attempts,
		questions:    questions,
		topics:       topics,
		locker:       newLocalLocker(),
		now:          time.Now,
		maxQuestions: defaultMaxQuestions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.selector = NewSelector(questions)
	s.results = NewResultBuilder(attempts, questions, topics, s.now)
	return s
}

// StartAttempt selects questions and opens a new in-progress attempt over them.
func (s *QuizService) StartAttempt(ctx context.Context, ownerID int64, req StartRequest) (domain.StartedAttempt, error) {
	if req.Count < 1 || req.Count > s.maxQuestions {
		return domain.StartedAttempt{}, domain.ErrInvalidSelection
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeStudy
	}
	if mode != domain.ModeStudy && mode != domain.ModeEvaluation {
		return domain.StartedAttempt{}, domain.ErrInvalidSelection
	}
	for _, t := range req.Types {
		if !t.Valid() {
			return domain.StartedAttempt{}, domain.ErrInvalidSelection
		}
	}

	questions, err := s.selector.Select(ctx, ownerID, Selection{
		TopicIDs:         req.TopicIDs,
		Types:            req.Types,
		Difficulty:       req.Difficulty,
		DesiredCount:     req.Count,
		PrioritizeUnseen: req.PrioritizeUnseen,
	})
	if err != nil {
		return domain.StartedAttempt{}, err
	}

	attempt, err := s.attempts.CreateAttempt(ctx, domain.Attempt{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		StartedAt:      s.now(),
		TotalQuestions: len(questions),
		CorrectCount:   0,
		Mode:           mode,
		QuestionIDs:    idsOf(questions),
		Filters: domain.SelectionFilters{
			TopicIDs:         req.TopicIDs,
			Types:            req.Types,
			Difficulty:       req.Difficulty,
			RequestedCount:   req.Count,
			PrioritizeUnseen: req.PrioritizeUnseen,
		},
	})
	if err != nil {
		return domain.StartedAttempt{}, err
	}
	return domain.StartedAttempt{Attempt: attempt, Questions: questions}, nil
}

// SubmitAnswer evaluates and records the answer to one question of the attempt.
// Each question accepts exactly one answer; resubmission fails with domain.ErrDuplicateAnswer.
func (s *QuizService) SubmitAnswer(ctx context.Context, attemptID uuid.UUID, ownerID, questionID int64, payload domain.AnswerPayload) (domain.AnswerResult, error) {
	unlock, err := s.locker.Lock(ctx, attemptID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	defer unlock()

	attempt, err := s.openAttempt(ctx, attemptID, ownerID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	exists, err := s.attempts.AnswerExists(ctx, attemptID, questionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if exists {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	if !attempt.Contains(questionID) {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question, err := s.questions.FindQuestionByID(ctx, questionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return s.record(ctx, attempt, question, payload)
}

// SubmitAnswerByPosition answers the next unanswered question of the attempt with a
// simplified token such as "a", "true" or "correct".
func (s *QuizService) SubmitAnswerByPosition(ctx context.Context, attemptID uuid.UUID, ownerID int64, token string) (domain.AnswerResult, error) {
	unlock, err := s.locker.Lock(ctx, attemptID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	defer unlock()

	attempt, err := s.openAttempt(ctx, attemptID, ownerID)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	answered := make(map[int64]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}
	next := int64(-1)
	for _, id := range attempt.QuestionIDs {
		if _, ok := answered[id]; !ok {
			next = id
			break
		}
	}
	if next < 0 {
		return domain.AnswerResult{}, domain.ErrNoPendingQuestion
	}

	question, err := s.questions.FindQuestionByID(ctx, next)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	payload, err := ResolveToken(question, token)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return s.record(ctx, attempt, question, payload)
}

func (s *QuizService) openAttempt(ctx context.Context, attemptID uuid.UUID, ownerID int64) (domain.Attempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID, ownerID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.Finished() {
		return domain.Attempt{}, domain.ErrAttemptFinished
	}
	return attempt, nil
}

func (s *QuizService) record(ctx context.Context, attempt domain.Attempt, question domain.Question, payload domain.AnswerPayload) (domain.AnswerResult, error) {
	answer := domain.Answer{
		ID:         uuid.New(),
		AttemptID:  attempt.ID,
		QuestionID: question.ID,
		Payload:    payload,
		Correct:    Evaluate(question, payload),
		AnsweredAt: s.now(),
	}
	updated, err := s.attempts.RecordAnswer(ctx, answer)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return domain.AnswerResult{
		Answer:       answer,
		Question:     question,
		CorrectCount: updated.CorrectCount,
	}, nil
}

// FinishAttempt closes the attempt and returns its report. The correct count is
// recounted from the stored answers rather than taken from the running counter.
func (s *QuizService) FinishAttempt(ctx context.Context, attemptID uuid.UUID, ownerID int64) (domain.Report, error) {
	unlock, err := s.locker.Lock(ctx, attemptID)
	if err != nil {
		return domain.Report{}, err
	}
	defer unlock()

	if _, err := s.openAttempt(ctx, attemptID, ownerID); err != nil {
		return domain.Report{}, err
	}
	attempt, previous, err := s.attempts.FinishAttempt(ctx, attemptID, ownerID, s.now())
	if err != nil {
		return domain.Report{}, err
	}
	if previous != attempt.CorrectCount {
		log.Printf("attempt %s: correct count drift, counter=%d recount=%d", attemptID, previous, attempt.CorrectCount)
	}
	return s.results.Build(ctx, attempt)
}

// GetResult returns the report of an attempt, finished or not.
func (s *QuizService) GetResult(ctx context.Context, attemptID uuid.UUID, ownerID int64) (domain.Report, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID, ownerID)
	if err != nil {
		return domain.Report{}, err
	}
	return s.results.Build(ctx, attempt)
}

// GetAttempt returns the attempt with its answers and questions in frozen order.
func (s *QuizService) GetAttempt(ctx context.Context, attemptID uuid.UUID, ownerID int64) (domain.AttemptDetail, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID, ownerID)
	if err != nil {
		return domain.AttemptDetail{}, err
	}
	answers, err := s.attempts.ListAnswers(ctx, attemptID)
	if err != nil {
		return domain.AttemptDetail{}, err
	}
	questions := make([]domain.Question, 0, len(attempt.QuestionIDs))
	for _, id := range attempt.QuestionIDs {
		q, err := s.questions.FindQuestionByID(ctx, id)
		if errors.Is(err, domain.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return domain.AttemptDetail{}, err
		}
		questions = append(questions, q)
	}
	return domain.AttemptDetail{Attempt: attempt, Answers: answers, Questions: questions}, nil
}

// ListHistory summarises the owner's attempts, newest first.
func (s *QuizService) ListHistory(ctx context.Context, ownerID int64, mode domain.Mode, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	attempts, err := s.attempts.ListAttempts(ctx, ownerID, mode, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.historyEntries(ctx, attempts)
}

func (s *QuizService) historyEntries(ctx context.Context, attempts []domain.Attempt) ([]domain.HistoryEntry, error) {
	var topicIDs []int64
	seen := make(map[int64]struct{})
	for _, a := range attempts {
		for _, id := range a.Filters.TopicIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				topicIDs = append(topicIDs, id)
			}
		}
	}
	names, err := s.topicNames(ctx, topicIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.HistoryEntry, 0, len(attempts))
	for _, a := range attempts {
		topics := make([]string, 0, len(a.Filters.TopicIDs))
		for _, id := range a.Filters.TopicIDs {
			if name, ok := names[id]; ok {
				topics = append(topics, name)
			}
		}
		var total int64
		if a.FinishedAt != nil {
			total = elapsedSeconds(a, *a.FinishedAt)
		}
		entries = append(entries, domain.HistoryEntry{
			AttemptID:        a.ID,
			Mode:             a.Mode,
			TotalQuestions:   a.TotalQuestions,
			CorrectAnswers:   a.CorrectCount,
			Score:            percentage(a.CorrectCount, a.TotalQuestions),
			TotalTimeSeconds: total,
			StartedAt:        a.StartedAt,
			FinishedAt:       a.FinishedAt,
			Topics:           topics,
		})
	}
	return entries, nil
}

func (s *QuizService) topicNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 || s.topics == nil {
		return map[int64]string{}, nil
	}
	return s.topics.TopicNames(ctx, ids)
}

// DashboardStats summarises the owner's active question pool and answer record.
// Accuracy is computed over every answer ever given, finished attempts or not.
func (s *QuizService) DashboardStats(ctx context.Context, ownerID int64) (domain.DashboardStats, error) {
	questions, err := s.questions.FindQuestions(ctx, QuestionQuery{OwnerID: ownerID})
	if err != nil {
		return domain.DashboardStats{}, err
	}
	tallies, err := s.attempts.AnswerTallies(ctx, ownerID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	totalAttempts, err := s.attempts.CountAttempts(ctx, ownerID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	recent, err := s.attempts.ListAttempts(ctx, ownerID, "", recentAttemptsLimit, 0)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		TotalQuestions: len(questions),
		TotalAttempts:  totalAttempts,
		ByType:         make(map[string]int, len(domain.QuestionTypes)),
		ByDifficulty:   make(map[string]int, len(domain.Difficulties)),
	}
	for _, t := range domain.QuestionTypes {
		stats.ByType[string(t)] = 0
	}
	for _, d := range domain.Difficulties {
		stats.ByDifficulty[string(d)] = 0
	}

	topics := make(map[int64]*domain.TopicStat)
	topicOf := make(map[int64]int64, len(questions))
	topicStat := func(id int64) *domain.TopicStat {
		ts, ok := topics[id]
		if !ok {
			ts = &domain.TopicStat{TopicID: id}
			topics[id] = ts
		}
		return ts
	}
	for _, q := range questions {
		topicOf[q.ID] = q.TopicID
		topicStat(q.TopicID).QuestionCount++
		stats.ByType[string(q.Type)]++
		if q.Difficulty != "" {
			stats.ByDifficulty[string(q.Difficulty)]++
		}
	}

	for qid, tally := range tallies {
		stats.TotalAnswers += tally.Answered
		stats.CorrectAnswers += tally.Correct

		topicID, ok := topicOf[qid]
		if !ok {
			// inactive questions still count towards their topic
			q, err := s.questions.FindQuestionByID(ctx, qid)
			if errors.Is(err, domain.ErrQuestionNotFound) {
				continue
			}
			if err != nil {
				return domain.DashboardStats{}, err
			}
			topicID = q.TopicID
			topicOf[qid] = topicID
		}
		ts := topicStat(topicID)
		ts.Answered += tally.Answered
		ts.Correct += tally.Correct
	}
	stats.OverallAccuracy = percentage(stats.CorrectAnswers, stats.TotalAnswers)

	ids := make([]int64, 0, len(topics))
	for id := range topics {
		ids = append(ids, id)
	}
	names, err := s.topicNames(ctx, ids)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.Topics = make([]domain.TopicStat, 0, len(topics))
	for _, ts := range topics {
		ts.TopicName = topicName(names, ts.TopicID)
		ts.Accuracy = percentage(ts.Correct, ts.Answered)
		stats.Topics = append(stats.Topics, *ts)
	}
	sort.Slice(stats.Topics, func(i, j int) bool {
		if stats.Topics[i].TopicName != stats.Topics[j].TopicName {
			return stats.Topics[i].TopicName < stats.Topics[j].TopicName
		}
		return stats.Topics[i].TopicID < stats.Topics[j].TopicID
	})

	stats.RecentAttempts, err = s.historyEntries(ctx, recent)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return stats, nil
}
