package notify

import (
	"fmt"
	"time"

	"incident-quiz/internal/models"

	"github.com/araddon/dateparse"
	"github.com/cbroglie/mustache"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Renderer substitutes context values into templates. Missing values render
// as empty strings.
type Renderer struct {
	loc    *time.Location
	layout string
}

// NewRenderer formats dates in timeZone with layout. An unknown time zone
// falls back to UTC.
func NewRenderer(timeZone, layout string) *Renderer {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = "Jan 02 2006 15:04:05"
	}
	return &Renderer{loc: loc, layout: layout}
}

// Format renders t in the configured zone and layout.
func (r *Renderer) Format(t time.Time) string {
	return t.In(r.loc).Format(r.layout)
}

// NormalizeDate reformats a date string for display. Values that cannot be
// parsed are returned unchanged.
func (r *Renderer) NormalizeDate(raw string) string {
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return r.Format(t)
}

func (r *Renderer) Render(tpl *models.CategoryTemplate, data map[string]interface{}) (Message, error) {
	subject, err := mustache.Render(tpl.Subject, data)
	if err != nil {
		return Message{}, fmt.Errorf("render subject of template %d: %w", tpl.ID, err)
	}
	body, err := mustache.Render(tpl.Body, data)
	if err != nil {
		return Message{}, fmt.Errorf("render body of template %d: %w", tpl.ID, err)
	}
	return Message{Subject: subject, Body: body}, nil
}
