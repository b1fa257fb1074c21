package domain

import "errors"

var (
	// ErrAttemptNotFound is returned when an attempt does not exist or belongs to another user.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoMatchingQuestions is returned when a selection yields no questions at all.
	ErrNoMatchingQuestions = errors.New("No questions found matching the selected criteria")
	// ErrAttemptFinished is returned for any mutation of a completed attempt.
	ErrAttemptFinished = errors.New("quiz attempt is already finished")
	// ErrDuplicateAnswer is returned when the question was already answered in the attempt.
	ErrDuplicateAnswer = errors.New("question already answered in this attempt")
	// ErrInvalidAnswerToken indicates a simplified answer token could not be resolved to an option.
	ErrInvalidAnswerToken = errors.New("answer token not recognized for this question")
	// ErrNoPendingQuestion is returned by positional submission once every question is answered.
	ErrNoPendingQuestion = errors.New("every question in this attempt has been answered")
	// ErrInvalidSelection indicates selection parameters outside the accepted range.
	ErrInvalidSelection = errors.New("invalid quiz selection")
)

// Kind groups errors the way callers surface them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrQuestionNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoMatchingQuestions),
		errors.Is(err, ErrAttemptFinished),
		errors.Is(err, ErrDuplicateAnswer),
		errors.Is(err, ErrInvalidAnswerToken),
		errors.Is(err, ErrNoPendingQuestion),
		errors.Is(err, ErrInvalidSelection):
		return KindBadRequest
	default:
		return KindInternal
	}
}
