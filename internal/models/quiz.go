// internal/models/quiz.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stored tags for Question.FieldKind and Question.WidgetKind. The form
// package owns the mapping from these tags to input descriptors.
const (
	FieldKindBoolean = "boolean"
	FieldKindText    = "text"

	WidgetKindCheckbox = "checkbox"
	WidgetKindTextArea = "textarea"
)

const (
	MinOrderIndex = 1
	MaxOrderIndex = 100
)

type Question struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FieldKind  string    `json:"field_kind" gorm:"size:32;not null"`
	WidgetKind string    `json:"widget_kind" gorm:"size:32"`
	Label      string    `json:"label" gorm:"size:500"`
	Title      string    `json:"title" gorm:"size:500"`
}

type QuestionGroup struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Title       string          `json:"title" gorm:"size:500"`
	Label       string          `json:"label" gorm:"size:500"`
	Description string          `json:"description" gorm:"type:text"`
	Required    bool            `json:"required"`
	Questions   []GroupQuestion `json:"questions,omitempty" gorm:"foreignKey:GroupID"`
}

// GroupQuestion places a question inside a group at a given position.
type GroupQuestion struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	GroupID    uint     `json:"group_id" gorm:"not null;uniqueIndex:idx_group_question_order"`
	QuestionID uint     `json:"question_id" gorm:"not null"`
	Question   Question `json:"question"`
	OrderIndex int      `json:"order_index" gorm:"not null;uniqueIndex:idx_group_question_order"`
}

type QuizTemplate struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CategoryID  uint             `json:"category_id" gorm:"not null;uniqueIndex"`
	Category    IncidentCategory `json:"category"`
	Name        string           `json:"name" gorm:"size:100;not null"`
	Description string           `json:"description" gorm:"type:text"`
	Groups      []TemplateGroup  `json:"groups,omitempty" gorm:"foreignKey:TemplateID"`
	UsefulLinks []UsefulLink     `json:"useful_links,omitempty" gorm:"foreignKey:TemplateID"`
}

// TemplateGroup places a question group inside a template at a given position.
type TemplateGroup struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	TemplateID uint          `json:"template_id" gorm:"not null;uniqueIndex:idx_template_group_order"`
	GroupID    uint          `json:"group_id" gorm:"not null"`
	Group      QuestionGroup `json:"group"`
	OrderIndex int           `json:"order_index" gorm:"not null;uniqueIndex:idx_template_group_order"`
}

type UsefulLink struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	TemplateID uint   `json:"template_id" gorm:"not null;index"`
	Label      string `json:"label" gorm:"size:200"`
	URL        string `json:"url" gorm:"size:1000;not null"`
	OrderIndex int    `json:"order_index" gorm:"not null"`
}

// Quiz is keyed by a random UUID so the id doubles as an access capability
// for respondents without an account.
type Quiz struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	TemplateID uint            `json:"template_id" gorm:"not null"`
	Template   QuizTemplate    `json:"template"`
	IncidentID uint            `json:"incident_id" gorm:"not null;uniqueIndex"`
	Incident   Incident        `json:"-"`
	IsAnswered bool            `json:"is_answered" gorm:"not null;default:false"`
	UserID     *uint           `json:"user_id"`
	User       *User           `json:"user,omitempty"`
	Watchlist  []WatchlistItem `json:"watchlist,omitempty" gorm:"foreignKey:QuizID"`
}

func (q *Quiz) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type QuizAnswer struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time     `json:"created_at"`
	QuestionID      uint          `json:"question_id" gorm:"not null;index"`
	Question        Question      `json:"question"`
	QuestionGroupID uint          `json:"question_group_id" gorm:"not null"`
	QuestionGroup   QuestionGroup `json:"-"`
	QuizID          string        `json:"quiz_id" gorm:"size:36;not null;index"`
	AnswerValue     string        `json:"answer_value" gorm:"type:text"`
}

type WatchlistItem struct {
	ID             uint          `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time     `json:"created_at"`
	QuizID         string        `json:"quiz_id" gorm:"size:36;not null;index"`
	BusinessLineID uint          `json:"business_line_id" gorm:"not null"`
	BusinessLine   *BusinessLine `json:"business_line,omitempty"`
}
