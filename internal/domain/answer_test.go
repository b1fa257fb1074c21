package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int", 5, 5, true},
		{"int32", int32(6), 6, true},
		{"int64", int64(7), 7, true},
		{"integral float", 8.0, 8, true},
		{"fractional float", 8.5, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"+Inf", math.Inf(1), 0, false},
		{"-Inf", math.Inf(-1), 0, false},
		{"huge float", 1e300, 0, false},
		{"2^63", 9223372036854775808.0, 0, false},
		{"json number", json.Number("42"), 42, true},
		{"json number fraction", json.Number("4.2"), 0, false},
		{"json number overflow", json.Number("99999999999999999999"), 0, false},
		{"string", "17", 17, true},
		{"padded string", "  18 ", 18, true},
		{"non numeric string", "abc", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseID(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAnswerPayload(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want AnswerPayload
	}{
		{"option as number", map[string]any{"selectedOptionId": 3.0}, SelectedOption(3)},
		{"option as string", map[string]any{"selectedOptionId": "3"}, SelectedOption(3)},
		{"free text", map[string]any{"textAnswer": "Paris"}, FreeText("Paris")},
		{"self assessment string", map[string]any{"selfAssessment": "Correct"}, SelfAssessment(true)},
		{"self assessment bool", map[string]any{"selfAssessment": false}, SelfAssessment(false)},
		{"token", map[string]any{"answer": "a"}, SimplifiedToken("a")},
		{"boolean token", map[string]any{"answer": true}, SimplifiedToken("true")},
		{"nil", nil, AnswerPayload{}},
		{"empty", map[string]any{}, AnswerPayload{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseAnswerPayload(tc.raw))
		})
	}
}

func TestParseAnswerPayloadKeepsUnrecognisedInput(t *testing.T) {
	for _, raw := range []map[string]any{
		{"selectedOptionId": "abc"},
		{"selfAssessment": "maybe"},
		{"textAnswer": 42.0},
		{"answer": 1.0},
		{"unexpected": "key"},
	} {
		p := ParseAnswerPayload(raw)
		assert.Equal(t, AnswerUnknown, p.Kind, "payload %v", raw)
		assert.Equal(t, raw, p.Map(), "payload %v", raw)
	}

	raw := map[string]any{"unexpected": "key"}
	p := ParseAnswerPayload(raw)
	raw["unexpected"] = "changed"
	assert.Equal(t, "key", p.Raw["unexpected"], "raw map is copied")
}

func TestAnswerPayloadJSON(t *testing.T) {
	cases := []struct {
		in   string
		want AnswerPayload
	}{
		{`{"selectedOptionId": 12}`, SelectedOption(12)},
		{`{"selectedOptionId": "12"}`, SelectedOption(12)},
		{`{"textAnswer": "Lyon"}`, FreeText("Lyon")},
		{`{"selfAssessment": "wrong"}`, SelfAssessment(false)},
		{`{"answer": "b"}`, SimplifiedToken("b")},
	}
	for _, tc := range cases {
		var p AnswerPayload
		require.NoError(t, json.Unmarshal([]byte(tc.in), &p), tc.in)
		assert.Equal(t, tc.want, p, tc.in)
	}

	data, err := json.Marshal(SelectedOption(12))
	require.NoError(t, err)
	assert.JSONEq(t, `{"selectedOptionId": 12}`, string(data))

	data, err = json.Marshal(SelfAssessment(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"selfAssessment": "correct"}`, string(data))

	var unknown AnswerPayload
	require.NoError(t, json.Unmarshal([]byte(`{"selectedOptionId": 1.5, "note": "x"}`), &unknown))
	assert.Equal(t, AnswerUnknown, unknown.Kind)
	data, err = json.Marshal(unknown)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selectedOptionId": 1.5, "note": "x"}`, string(data))

	var bad AnswerPayload
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &bad))
}
