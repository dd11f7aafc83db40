// internal/models/user.go
package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Username  string         `json:"username" gorm:"size:150;not null;uniqueIndex"`
	Email     string         `json:"email" gorm:"size:254"`
	Password  string         `json:"-"`
	IsHandler bool           `json:"is_handler" gorm:"not null;default:false"`
}

// All returns every table the service migrates, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Role{},
		&IncidentCategory{},
		&BusinessLine{},
		&Label{},
		&Incident{},
		&Artifact{},
		&Comment{},
		&AccessControlEntry{},
		&Question{},
		&QuestionGroup{},
		&GroupQuestion{},
		&QuizTemplate{},
		&TemplateGroup{},
		&UsefulLink{},
		&Quiz{},
		&QuizAnswer{},
		&WatchlistItem{},
		&CategoryTemplate{},
		&RenotifyDuration{},
	}
}
