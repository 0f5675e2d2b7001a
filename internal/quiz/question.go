// Package quiz synthesizes structured quiz questions from document chunks
// via the generative oracle.
package quiz

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Question is one quiz item. Answer is always a string: the literal "True"
// or "False" for true/false items, or a 0-based option index ("0".."3") for
// multiple choice.
type Question struct {
	Question string   `json:"question" bson:"question"`
	Options  []string `json:"options" bson:"options"`
	Answer   string   `json:"answer" bson:"answer"`
}

// UnmarshalJSON coerces the oracle's loosely typed answer field (boolean,
// number or string) to its string form.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question string          `json:"question"`
		Options  []string        `json:"options"`
		Answer   json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	q.Question = raw.Question
	q.Options = raw.Options

	if len(raw.Answer) == 0 {
		q.Answer = ""
		return nil
	}

	var b bool
	if err := json.Unmarshal(raw.Answer, &b); err == nil {
		if b {
			q.Answer = "True"
		} else {
			q.Answer = "False"
		}
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw.Answer, &n); err == nil {
		q.Answer = strconv.Itoa(int(n))
		return nil
	}

	var s string
	if err := json.Unmarshal(raw.Answer, &s); err == nil {
		q.Answer = s
		return nil
	}

	return fmt.Errorf("answer is neither boolean, number nor string")
}

// validate checks the structural contract: non-empty question text, 2 or 4
// options, and an answer consistent with the option count.
func (q Question) validate() error {
	if q.Question == "" {
		return fmt.Errorf("empty question text")
	}

	switch len(q.Options) {
	case 2:
		if q.Answer != "True" && q.Answer != "False" {
			return fmt.Errorf("true/false answer %q is not a boolean literal", q.Answer)
		}
	case 4:
		idx, err := strconv.Atoi(q.Answer)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return fmt.Errorf("multiple choice answer %q is not a valid option index", q.Answer)
		}
	default:
		return fmt.Errorf("expected 2 or 4 options, got %d", len(q.Options))
	}

	return nil
}
