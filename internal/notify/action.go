package notify

import (
	"strings"

	"incident-quiz/internal/models"
)

// Action selects how the rendering context of a comment is filled.
type Action int

const (
	ActionComment Action = iota
	ActionInitial
	ActionUserAnswered
)

// ParseAction maps a comment label onto an Action. Labels other than
// "initial" and "user answered" are plain comments.
func ParseAction(label string) Action {
	switch TemplateType(label) {
	case models.TemplateTypeInitial:
		return ActionInitial
	case models.TemplateTypeUserAnswered:
		return ActionUserAnswered
	default:
		return ActionComment
	}
}

func (a Action) String() string {
	switch a {
	case ActionInitial:
		return "initial"
	case ActionUserAnswered:
		return "user answered"
	default:
		return "comment"
	}
}

// TemplateType is the category template type looked up for a comment label.
func TemplateType(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
