package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payload keys accepted from clients and used for persistence.
const (
	KeySelectedOption = "selectedOptionId"
	KeyTextAnswer     = "textAnswer"
	KeySelfAssessment = "selfAssessment"
	KeyToken          = "answer"
)

// AnswerKind tags the variant held by an AnswerPayload.
type AnswerKind int

const (
	AnswerUnknown AnswerKind = iota
	AnswerSelectedOption
	AnswerFreeText
	AnswerSelfAssessment
	AnswerToken
)

// AnswerPayload is the submitted answer, decoded once at the boundary.
// Only the field matching Kind is meaningful. Raw keeps an unrecognised
// submission as it was sent so it can still be stored.
type AnswerPayload struct {
	Kind     AnswerKind
	OptionID int64
	Text     string
	SelfOK   bool
	Token    string
	Raw      map[string]any
}

func SelectedOption(id int64) AnswerPayload { return AnswerPayload{Kind: AnswerSelectedOption, OptionID: id} }
func FreeText(text string) AnswerPayload     { return AnswerPayload{Kind: AnswerFreeText, Text: text} }
func SelfAssessment(ok bool) AnswerPayload   { return AnswerPayload{Kind: AnswerSelfAssessment, SelfOK: ok} }
func SimplifiedToken(tok string) AnswerPayload {
	return AnswerPayload{Kind: AnswerToken, Token: tok}
}

// ParseAnswerPayload decodes the raw key/value answer sent by clients.
// Unrecognised or malformed input yields an AnswerUnknown payload carrying the
// raw map, never an error.
func ParseAnswerPayload(raw map[string]any) AnswerPayload {
	if len(raw) == 0 {
		return AnswerPayload{}
	}
	if v, ok := raw[KeySelectedOption]; ok {
		if id, ok := ParseID(v); ok {
			return SelectedOption(id)
		}
		return unknownPayload(raw)
	}
	if v, ok := raw[KeySelfAssessment]; ok {
		if b, ok := parseSelfAssessment(v); ok {
			return SelfAssessment(b)
		}
		return unknownPayload(raw)
	}
	if v, ok := raw[KeyTextAnswer]; ok {
		if s, ok := v.(string); ok {
			return FreeText(s)
		}
		return unknownPayload(raw)
	}
	if v, ok := raw[KeyToken]; ok {
		switch t := v.(type) {
		case string:
			return SimplifiedToken(t)
		case bool:
			return SimplifiedToken(strconv.FormatBool(t))
		}
	}
	return unknownPayload(raw)
}

func unknownPayload(raw map[string]any) AnswerPayload {
	cp := make(map[string]any, len(raw))
	for k, v := range raw {
		cp[k] = v
	}
	return AnswerPayload{Kind: AnswerUnknown, Raw: cp}
}

// Map renders the payload in its canonical key/value form.
func (p AnswerPayload) Map() map[string]any {
	switch p.Kind {
	case AnswerSelectedOption:
		return map[string]any{KeySelectedOption: p.OptionID}
	case AnswerFreeText:
		return map[string]any{KeyTextAnswer: p.Text}
	case AnswerSelfAssessment:
		v := "wrong"
		if p.SelfOK {
			v = "correct"
		}
		return map[string]any{KeySelfAssessment: v}
	case AnswerToken:
		return map[string]any{KeyToken: p.Token}
	}
	out := make(map[string]any, len(p.Raw))
	for k, v := range p.Raw {
		out[k] = v
	}
	return out
}

func (p AnswerPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

func (p *AnswerPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*p = ParseAnswerPayload(raw)
	return nil
}

// ParseID normalises numeric and string identifier forms.
func ParseID(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		// NaN fails the Trunc comparison; the range check also rejects ±Inf
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		id, err := t.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return id, err == nil
	}
	return 0, false
}

func parseSelfAssessment(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "correct", "right", "true":
			return true, true
		case "wrong", "incorrect", "false":
			return false, true
		}
	}
	return false, false
}

// Answer is one submitted answer; never mutated after creation.
type Answer struct {
	ID         uuid.UUID     `json:"id"`
	AttemptID  uuid.UUID     `json:"attemptId"`
	QuestionID int64         `json:"questionId"`
	Payload    AnswerPayload `json:"userAnswer"`
	Correct    bool          `json:"correct"`
	AnsweredAt time.Time     `json:"answeredAt"`
}
