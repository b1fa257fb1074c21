package app

import (
	"strings"

	"quiz-attempt-engine/internal/domain"
)

type polarity int

const (
	polarityNone polarity = iota
	polarityAffirmative
	polarityNegative
)

// Option texts recognised when inferring which option means "true" or "false".
var (
	affirmativeOptionText = set("verdadeiro", "true", "correta", "correto")
	negativeOptionText    = set("falso", "false", "incorreta", "incorreto")
)

// Tokens sent by lightweight clients.
var (
	affirmativeTokens = set("true", "t", "v", "verdadeiro", "correct", "correta", "correto", "certo", "yes", "sim", "1")
	negativeTokens    = set("false", "f", "falso", "wrong", "incorrect", "incorreta", "incorreto", "errado", "no", "nao", "não", "0")
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Evaluate reports whether payload is a correct answer to q. It never fails:
// a payload it cannot interpret is simply wrong.
func Evaluate(q domain.Question, p domain.AnswerPayload) bool {
	switch p.Kind {
	case domain.AnswerSelectedOption:
		opt, _, ok := q.OptionByID(p.OptionID)
		return ok && opt.Correct
	case domain.AnswerFreeText:
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return false
		}
		for _, opt := range q.Options {
			if opt.Correct && strings.EqualFold(strings.TrimSpace(opt.Text), text) {
				return true
			}
		}
		return false
	case domain.AnswerSelfAssessment:
		return q.Type == domain.Flashcard && p.SelfOK
	case domain.AnswerToken:
		resolved, err := ResolveToken(q, p.Token)
		if err != nil {
			return false
		}
		return Evaluate(q, resolved)
	}
	return false
}

// ResolveToken converts a simplified token ("a", "true", "correct", ...) into the
// canonical payload for q.
func ResolveToken(q domain.Question, token string) (domain.AnswerPayload, error) {
	tok := strings.ToLower(strings.TrimSpace(token))
	if tok == "" {
		return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken
	}

	switch q.Type {
	case domain.Flashcard:
		switch tokenPolarity(tok) {
		case polarityAffirmative:
			return domain.SelfAssessment(true), nil
		case polarityNegative:
			return domain.SelfAssessment(false), nil
		}
		return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken

	case domain.TrueFalse, domain.CommentedPhrase:
		pol := tokenPolarity(tok)
		if pol == polarityNone {
			switch tok {
			case "a":
				pol = polarityAffirmative
			case "b":
				pol = polarityNegative
			default:
				return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken
			}
		}
		opt, ok := optionForPolarity(q, pol)
		if !ok {
			return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken
		}
		return domain.SelectedOption(opt.ID), nil

	default:
		if len(tok) != 1 || tok[0] < 'a' || tok[0] > 'z' {
			return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken
		}
		idx := int(tok[0] - 'a')
		if idx >= len(q.Options) {
			return domain.AnswerPayload{}, domain.ErrInvalidAnswerToken
		}
		return domain.SelectedOption(q.Options[idx].ID), nil
	}
}

func tokenPolarity(tok string) polarity {
	if _, ok := affirmativeTokens[tok]; ok {
		return polarityAffirmative
	}
	if _, ok := negativeTokens[tok]; ok {
		return polarityNegative
	}
	return polarityNone
}

func optionTextPolarity(text string) polarity {
	norm := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!")
	if _, ok := affirmativeOptionText[norm]; ok {
		return polarityAffirmative
	}
	if _, ok := negativeOptionText[norm]; ok {
		return polarityNegative
	}
	return polarityNone
}

// optionForPolarity picks the first option whose text carries the polarity and
// otherwise falls back to position: first option affirmative, second (or last) negative.
func optionForPolarity(q domain.Question, pol polarity) (domain.Option, bool) {
	if len(q.Options) == 0 || pol == polarityNone {
		return domain.Option{}, false
	}
	for _, opt := range q.Options {
		if optionTextPolarity(opt.Text) == pol {
			return opt, true
		}
	}
	if pol == polarityAffirmative {
		return q.Options[0], true
	}
	if len(q.Options) >= 2 {
		return q.Options[1], true
	}
	return q.Options[len(q.Options)-1], true
}

// answerLabel renders the submitted answer the way it is shown to users.
func answerLabel(q domain.Question, p domain.AnswerPayload) string {
	switch p.Kind {
	case domain.AnswerSelectedOption:
		return optionLabel(q, p.OptionID)
	case domain.AnswerFreeText:
		return p.Text
	case domain.AnswerSelfAssessment:
		if p.SelfOK {
			return "correct"
		}
		return "wrong"
	case domain.AnswerToken:
		resolved, err := ResolveToken(q, p.Token)
		if err != nil {
			return p.Token
		}
		return answerLabel(q, resolved)
	}
	return ""
}

func optionLabel(q domain.Question, optionID int64) string {
	if q.Type == domain.TrueFalse || q.Type == domain.CommentedPhrase {
		if opt, ok := optionForPolarity(q, polarityAffirmative); ok && opt.ID == optionID {
			return "true"
		}
		if opt, ok := optionForPolarity(q, polarityNegative); ok && opt.ID == optionID {
			return "false"
		}
	}
	if _, idx, ok := q.OptionByID(optionID); ok {
		return domain.OptionLabel(idx)
	}
	return ""
}
