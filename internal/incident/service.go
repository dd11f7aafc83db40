// Package incident reads incidents and appends to their comment log.
package incident

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"incident-quiz/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("incident not found")
	ErrTreeTooDeep = errors.New("business line tree too deep")
)

// Comment action labels written by this service.
const (
	LabelInitial      = "Initial"
	LabelUserAnswered = "User Answered"
)

// RenotifyLabel is the comment action for a renotification at severity.
func RenotifyLabel(severity int) string {
	return fmt.Sprintf("Renotify%d", severity)
}

// CommentObserver is told about every comment added through the service.
type CommentObserver interface {
	CommentAdded(ctx context.Context, inc *models.Incident, c *models.Comment) error
}

// CommentObserverFunc adapts a function to CommentObserver.
type CommentObserverFunc func(ctx context.Context, inc *models.Incident, c *models.Comment) error

func (f CommentObserverFunc) CommentAdded(ctx context.Context, inc *models.Incident, c *models.Comment) error {
	return f(ctx, inc, c)
}

// Publisher pushes a typed message to everyone watching a room.
type Publisher interface {
	Broadcast(room, msgType string, data interface{})
}

// PublishComments announces new comments in their incident's room.
func PublishComments(p Publisher) CommentObserver {
	return CommentObserverFunc(func(_ context.Context, inc *models.Incident, c *models.Comment) error {
		p.Broadcast(strconv.FormatUint(uint64(inc.ID), 10), "comment_added", map[string]interface{}{
			"comment_id": c.ID,
			"action":     c.Action.Name,
			"date":       c.Date,
		})
		return nil
	})
}

type Service struct {
	repo      *Repository
	observers []CommentObserver
	log       *zap.Logger
	now       func() time.Time
}

func NewService(repo *Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) Repository() *Repository {
	return s.repo
}

// Observe registers o. Observers run in registration order.
func (s *Service) Observe(o CommentObserver) {
	s.observers = append(s.observers, o)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Incident, error) {
	return s.repo.Get(ctx, id)
}

// EnsureGlobalCategory creates the fallback category once at startup.
func (s *Service) EnsureGlobalCategory(ctx context.Context, name string) (uint, error) {
	cat, err := s.repo.EnsureCategory(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("ensure global category %q: %w", name, err)
	}
	return cat.ID, nil
}

// AddComment appends a comment with the given action label and tells every
// observer about it. Observer failures are logged.
func (s *Service) AddComment(ctx context.Context, incidentID uint, label, text string, author *uint) (*models.Comment, error) {
	inc, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	action, err := s.repo.EnsureLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("ensure label %q: %w", label, err)
	}

	c := &models.Comment{
		IncidentID: incidentID,
		Comment:    text,
		ActionID:   action.ID,
		Date:       s.now(),
		OpenedByID: author,
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	c.Action = *action
	inc.Comments = append(inc.Comments, *c)

	s.log.Info("Comment added",
		zap.Uint("incident_id", incidentID),
		zap.String("action", label),
	)

	for i, o := range s.observers {
		s.notify(ctx, i, o, inc, c)
	}
	return c, nil
}

func (s *Service) notify(ctx context.Context, idx int, o CommentObserver, inc *models.Incident, c *models.Comment) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Comment observer panicked",
				zap.Int("observer", idx),
				zap.Uint("comment_id", c.ID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := o.CommentAdded(ctx, inc, c); err != nil {
		s.log.Error("Comment observer failed",
			zap.Int("observer", idx),
			zap.Uint("comment_id", c.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) Block(ctx context.Context, incidentID uint) error {
	return s.repo.SetStatus(ctx, incidentID, models.StatusBlocked)
}

func (s *Service) AddArtifact(ctx context.Context, incidentID uint, typ, value string) error {
	_, err := s.repo.AddArtifact(ctx, incidentID, typ, value)
	return err
}
