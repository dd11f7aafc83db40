package form

import (
	"errors"
	"fmt"

	"incident-quiz/internal/models"
)

var (
	ErrUnknownFieldKind  = errors.New("unknown field kind")
	ErrUnknownWidgetKind = errors.New("unknown widget kind")
)

// FieldKind is the logical input type of a question.
type FieldKind int

const (
	Boolean FieldKind = iota + 1
	Text
)

// WidgetKind is how a question is presented.
type WidgetKind int

const (
	Checkbox WidgetKind = iota + 1
	TextArea
)

var fieldKinds = map[string]FieldKind{
	models.FieldKindBoolean: Boolean,
	models.FieldKindText:    Text,
}

var widgetKinds = map[string]WidgetKind{
	models.WidgetKindCheckbox: Checkbox,
	models.WidgetKindTextArea: TextArea,
}

var defaultWidgets = map[FieldKind]WidgetKind{
	Boolean: Checkbox,
	Text:    TextArea,
}

func ParseFieldKind(tag string) (FieldKind, error) {
	k, ok := fieldKinds[tag]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFieldKind, tag)
	}
	return k, nil
}

// ParseWidgetKind resolves a stored widget tag. An empty tag selects the
// default widget of the field kind.
func ParseWidgetKind(tag string, kind FieldKind) (WidgetKind, error) {
	if tag == "" {
		w, ok := defaultWidgets[kind]
		if !ok {
			return 0, fmt.Errorf("%w: no default for field kind %d", ErrUnknownWidgetKind, kind)
		}
		return w, nil
	}
	w, ok := widgetKinds[tag]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWidgetKind, tag)
	}
	return w, nil
}

// CheckQuestion reports whether the question's stored tags can be rendered.
func CheckQuestion(q models.Question) error {
	kind, err := ParseFieldKind(q.FieldKind)
	if err != nil {
		return err
	}
	_, err = ParseWidgetKind(q.WidgetKind, kind)
	return err
}

func (k FieldKind) String() string {
	switch k {
	case Boolean:
		return models.FieldKindBoolean
	case Text:
		return models.FieldKindText
	}
	return "unknown"
}

func (k FieldKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (w WidgetKind) String() string {
	switch w {
	case Checkbox:
		return models.WidgetKindCheckbox
	case TextArea:
		return models.WidgetKindTextArea
	}
	return "unknown"
}

func (w WidgetKind) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
