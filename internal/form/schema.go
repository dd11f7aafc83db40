package form

import (
	"fmt"
	"sort"

	"incident-quiz/internal/models"
)

// Order is the direction in which order_index values are sorted. The same
// value must be used when rendering a form and when replaying its answers.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) less(a, b int) bool {
	if o == Descending {
		return a > b
	}
	return a < b
}

// SortTemplateGroups returns a sorted copy of groups.
func SortTemplateGroups(groups []models.TemplateGroup, order Order) []models.TemplateGroup {
	out := make([]models.TemplateGroup, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		return order.less(out[i].OrderIndex, out[j].OrderIndex)
	})
	return out
}

// SortGroupQuestions returns a sorted copy of questions.
func SortGroupQuestions(questions []models.GroupQuestion, order Order) []models.GroupQuestion {
	out := make([]models.GroupQuestion, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool {
		return order.less(out[i].OrderIndex, out[j].OrderIndex)
	})
	return out
}

// Field describes one input. Required is always false: presence is enforced
// per group, not per field.
type Field struct {
	QuestionID uint       `json:"question_id"`
	Name       string     `json:"name"`
	Kind       FieldKind  `json:"kind"`
	Widget     WidgetKind `json:"widget"`
	Label      string     `json:"label"`
	Title      string     `json:"title,omitempty"`
	Required   bool       `json:"required"`
	Disabled   bool       `json:"disabled"`
	Initial    string     `json:"initial,omitempty"`
}

type FieldSet struct {
	GroupID     uint     `json:"group_id"`
	Title       string   `json:"title"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Fields      []Field  `json:"fields"`
	Errors      []string `json:"errors,omitempty"`
}

// Field returns the field for questionID, or nil.
func (fs *FieldSet) Field(questionID uint) *Field {
	for i := range fs.Fields {
		if fs.Fields[i].QuestionID == questionID {
			return &fs.Fields[i]
		}
	}
	return nil
}

type Schema struct {
	Disabled  bool       `json:"disabled"`
	FieldSets []FieldSet `json:"field_sets"`
}

// AnswerKey identifies a stored answer inside a quiz.
type AnswerKey struct {
	GroupID    uint
	QuestionID uint
}

type Options struct {
	// Disabled renders a read-only schema that echoes Answers.
	Disabled bool
	Answers  map[AnswerKey]string
	Order    Order
}

// Build materializes one field set per template group. It fails on the
// first question whose stored tags are unknown.
func Build(groups []models.TemplateGroup, opts Options) (*Schema, error) {
	schema := &Schema{
		Disabled:  opts.Disabled,
		FieldSets: make([]FieldSet, 0, len(groups)),
	}

	for _, tg := range SortTemplateGroups(groups, opts.Order) {
		group := tg.Group
		fs := FieldSet{
			GroupID:     group.ID,
			Title:       group.Title,
			Label:       group.Label,
			Description: group.Description,
			Required:    group.Required,
			Fields:      make([]Field, 0, len(group.Questions)),
		}

		for _, gq := range SortGroupQuestions(group.Questions, opts.Order) {
			field, err := buildField(gq.Question)
			if err != nil {
				return nil, fmt.Errorf("group %d question %d: %w", group.ID, gq.Question.ID, err)
			}
			field.Name = fmt.Sprintf("%d-%d", group.ID, gq.Question.ID)
			field.Disabled = opts.Disabled
			if opts.Disabled {
				field.Initial = opts.Answers[AnswerKey{GroupID: group.ID, QuestionID: gq.Question.ID}]
			}
			fs.Fields = append(fs.Fields, field)
		}

		schema.FieldSets = append(schema.FieldSets, fs)
	}

	return schema, nil
}

func buildField(q models.Question) (Field, error) {
	kind, err := ParseFieldKind(q.FieldKind)
	if err != nil {
		return Field{}, err
	}
	widget, err := ParseWidgetKind(q.WidgetKind, kind)
	if err != nil {
		return Field{}, err
	}
	return Field{
		QuestionID: q.ID,
		Kind:       kind,
		Widget:     widget,
		Label:      q.Label,
		Title:      q.Title,
	}, nil
}
