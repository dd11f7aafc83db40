package models

import (
	"fmt"
	"time"
)

// Template types with a fixed meaning. Renotification types are built per
// severity, see RenotifyType.
const (
	TemplateTypeInitial      = "initial"
	TemplateTypeUserAnswered = "user answered"
	TemplateTypeQuizAnswer   = "quiz answer"
)

// CategoryTemplate is the subject/body pair sent for a (category, type) pair.
type CategoryTemplate struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	CategoryID uint             `json:"category_id" gorm:"not null;index:idx_category_template_type"`
	Category   IncidentCategory `json:"-"`
	Type       string           `json:"type" gorm:"size:100;not null;index:idx_category_template_type"`
	Subject    string           `json:"subject" gorm:"type:text"`
	Body       string           `json:"body" gorm:"type:text"`
}

// RenotifyDuration overrides the renotification threshold for one category
// and severity.
type RenotifyDuration struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	CategoryID uint          `json:"category_id" gorm:"not null;uniqueIndex:idx_renotify_category_severity"`
	Severity   int           `json:"severity" gorm:"not null;uniqueIndex:idx_renotify_category_severity"`
	Duration   time.Duration `json:"duration" gorm:"not null"`
}

// RenotifyType is the template type used for renotifications at severity.
func RenotifyType(severity int) string {
	return fmt.Sprintf("renotify%d", severity)
}
