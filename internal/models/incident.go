// internal/models/incident.go
package models

import (
	"time"
)

// Incident statuses as stored by the incident tool.
const (
	StatusOpen    = "O"
	StatusBlocked = "B"
	StatusClosed  = "C"
)

type IncidentCategory struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

// BusinessLine is a node of the business-line tree. Roots have no parent.
type BusinessLine struct {
	ID       uint          `json:"id" gorm:"primaryKey"`
	Name     string        `json:"name" gorm:"size:100;not null;index"`
	ParentID *uint         `json:"parent_id"`
	Parent   *BusinessLine `json:"-"`
}

type Incident struct {
	ID                     uint             `json:"id" gorm:"primaryKey"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
	Date                   time.Time        `json:"date"`
	Subject                string           `json:"subject" gorm:"size:256"`
	Description            string           `json:"description" gorm:"type:text"`
	CategoryID             uint             `json:"category_id"`
	Category               IncidentCategory `json:"category"`
	Severity               int              `json:"severity"`
	Status                 string           `json:"status" gorm:"size:1;default:O"`
	OpenedByID             *uint            `json:"opened_by_id"`
	OpenedBy               *User            `json:"-"`
	ConcernedBusinessLines []BusinessLine   `json:"concerned_business_lines,omitempty" gorm:"many2many:incident_business_lines"`
	Artifacts              []Artifact       `json:"artifacts,omitempty"`
	Comments               []Comment        `json:"comments,omitempty"`
}

type Artifact struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	IncidentID uint   `json:"incident_id" gorm:"not null;index"`
	Type       string `json:"type" gorm:"size:100;not null"`
	Value      string `json:"value" gorm:"type:text"`
}

// Label names a comment action, e.g. "Initial", "User Answered", "Renotify2".
type Label struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

type Comment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	IncidentID uint      `json:"incident_id" gorm:"not null;index"`
	Comment    string    `json:"comment" gorm:"type:text"`
	ActionID   uint      `json:"action_id"`
	Action     Label     `json:"action"`
	Date       time.Time `json:"date"`
	OpenedByID *uint     `json:"opened_by_id"`
	OpenedBy   *User     `json:"-"`
}

type Role struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex"`
}

type AccessControlEntry struct {
	ID             uint         `json:"id" gorm:"primaryKey"`
	UserID         uint         `json:"user_id" gorm:"not null;index"`
	User           User         `json:"user"`
	RoleID         uint         `json:"role_id" gorm:"not null"`
	Role           Role         `json:"role"`
	BusinessLineID uint         `json:"business_line_id" gorm:"not null;index"`
	BusinessLine   BusinessLine `json:"business_line"`
}
