package domain

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	MultipleChoice  QuestionType = "MULTIPLE_CHOICE"
	TrueFalse       QuestionType = "TRUE_FALSE"
	CommentedPhrase QuestionType = "COMMENTED_PHRASE"
	Flashcard       QuestionType = "FLASHCARD"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, CommentedPhrase, Flashcard:
		return true
	}
	return false
}

// Difficulty of a question; compared by exact match during selection.
type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

// Option represents a possible answer for a question.
type Option struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
	OrderIndex  int    `json:"orderIndex"`
}

// Question is owned by the topic/question CRUD layer and read-only here.
// The order of Options defines the display labels "a", "b", "c", ...
type Question struct {
	ID          int64        `json:"id"`
	OwnerID     int64        `json:"ownerId"`
	TopicID     int64        `json:"topicId"`
	Type        QuestionType `json:"type"`
	Statement   string       `json:"statement"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  Difficulty   `json:"difficulty,omitempty"`
	Active      bool         `json:"active"`
	Options     []Option     `json:"options"`
}

// OptionByID returns the option with the given id.
func (q Question) OptionByID(id int64) (Option, int, bool) {
	for i, opt := range q.Options {
		if opt.ID == id {
			return opt, i, true
		}
	}
	return Option{}, -1, false
}

// Redacted hides correctness flags and explanations, for questions shown before they are answered.
func (q Question) Redacted() Question {
	out := q
	out.Explanation = ""
	out.Options = make([]Option, len(q.Options))
	for i, opt := range q.Options {
		opt.Correct = false
		opt.Explanation = ""
		out.Options[i] = opt
	}
	return out
}

// OptionLabel is the positional label of the i-th option: 0 -> "a", 1 -> "b", ...
func OptionLabel(i int) string {
	if i < 0 || i >= 26 {
		return ""
	}
	return string(rune('a' + i))
}
