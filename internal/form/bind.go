package form

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// CheckedValue is the value stored for a ticked checkbox.
const CheckedValue = "on"

const requiredGroupMessage = "Please answer at least one question in this section."

var ErrDisabled = errors.New("form is read-only")

// Submission holds raw submitted values by group id, then question id.
type Submission map[uint]map[uint]string

// ParseValues reads "<group id>-<question id>" keyed form values.
// Keys that do not follow the pattern are ignored.
func ParseValues(values url.Values) Submission {
	sub := Submission{}
	for key, vals := range values {
		groupPart, questionPart, ok := strings.Cut(key, "-")
		if !ok || len(vals) == 0 {
			continue
		}
		groupID, err := strconv.ParseUint(groupPart, 10, 64)
		if err != nil {
			continue
		}
		questionID, err := strconv.ParseUint(questionPart, 10, 64)
		if err != nil {
			continue
		}
		if sub[uint(groupID)] == nil {
			sub[uint(groupID)] = map[uint]string{}
		}
		sub[uint(groupID)][uint(questionID)] = vals[len(vals)-1]
	}
	return sub
}

type Answer struct {
	GroupID    uint
	QuestionID uint
	Value      string
}

// Bound is a schema with submitted data applied.
type Bound struct {
	Schema  *Schema
	Answers []Answer
	Errors  map[uint]string
}

func (b *Bound) Valid() bool {
	return len(b.Errors) == 0
}

// Bind normalizes the submission against schema and validates every group
// on its own. Values for questions outside the schema are dropped. The
// returned schema echoes the submitted values so it can be shown again.
func Bind(schema *Schema, sub Submission) (*Bound, error) {
	if schema.Disabled {
		return nil, ErrDisabled
	}

	bound := &Bound{
		Schema: &Schema{FieldSets: make([]FieldSet, len(schema.FieldSets))},
		Errors: map[uint]string{},
	}

	for i, fs := range schema.FieldSets {
		out := fs
		out.Fields = make([]Field, len(fs.Fields))
		out.Errors = nil
		copy(out.Fields, fs.Fields)

		answered := 0
		for j := range out.Fields {
			field := &out.Fields[j]
			value, ok := normalize(field.Kind, sub[fs.GroupID][field.QuestionID])
			if !ok {
				field.Initial = ""
				continue
			}
			field.Initial = value
			bound.Answers = append(bound.Answers, Answer{
				GroupID:    fs.GroupID,
				QuestionID: field.QuestionID,
				Value:      value,
			})
			answered++
		}

		if fs.Required && answered == 0 {
			out.Errors = []string{requiredGroupMessage}
			bound.Errors[fs.GroupID] = requiredGroupMessage
		}
		bound.Schema.FieldSets[i] = out
	}

	return bound, nil
}

// normalize returns the value to store and whether it counts as an answer.
func normalize(kind FieldKind, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case Boolean:
		switch strings.ToLower(raw) {
		case CheckedValue, "true":
			return CheckedValue, true
		}
		return "", false
	default:
		if raw == "" {
			return "", false
		}
		return raw, true
	}
}
