// Package watchlist keeps the business lines watching a quiz and runs the
// subscription that starts the notification cycle of an incident.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"incident-quiz/internal/artifact"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"
	"incident-quiz/internal/quiz"

	"go.uber.org/zap"
)

var (
	ErrNotFound            = errors.New("watchlist item not found")
	ErrUnknownQuiz         = errors.New("quiz not found")
	ErrUnknownBusinessLine = errors.New("business line not found")
)

const initialNotificationText = "Initial notification sent"

type QuizReader interface {
	Get(ctx context.Context, id string) (*models.Quiz, error)
}

type Service struct {
	repo      *Repository
	quizzes   QuizReader
	incidents *incident.Service
	publicURL string
	log       *zap.Logger
}

// NewService builds the service. publicURL is the base of incident links in
// notifications; when empty the caller's base URL is used.
func NewService(repo *Repository, quizzes QuizReader, incidents *incident.Service, publicURL string, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		quizzes:   quizzes,
		incidents: incidents,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}
}

func (s *Service) List(ctx context.Context) ([]models.WatchlistItem, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.WatchlistItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) quiz(ctx context.Context, id string) (*models.Quiz, error) {
	q, err := s.quizzes.Get(ctx, id)
	if errors.Is(err, quiz.ErrNotFound) {
		return nil, ErrUnknownQuiz
	}
	return q, err
}

func (s *Service) Create(ctx context.Context, quizID string, businessLineID uint) (*models.WatchlistItem, error) {
	if _, err := s.quiz(ctx, quizID); err != nil {
		return nil, err
	}
	if _, err := s.incidents.Repository().GetBusinessLine(ctx, businessLineID); err != nil {
		if errors.Is(err, incident.ErrNotFound) {
			return nil, ErrUnknownBusinessLine
		}
		return nil, err
	}
	item, err := s.repo.Add(ctx, quizID, businessLineID)
	if err != nil {
		return nil, fmt.Errorf("add watchlist item: %w", err)
	}
	return s.repo.Get(ctx, item.ID)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

// IncidentURL returns the link to an incident, preferring the configured
// public base over baseURL.
func (s *Service) IncidentURL(baseURL string, incidentID uint) string {
	base := s.publicURL
	if base == "" {
		base = strings.TrimRight(baseURL, "/")
	}
	return fmt.Sprintf("%s/incidents/%d", base, incidentID)
}

// Subscribe puts the business lines on the quiz's watch list, blocks the
// incident, records its link and device artifacts and appends the "Initial"
// comment that sends the first notification. Unknown business lines are
// skipped.
func (s *Service) Subscribe(ctx context.Context, req models.SubscribeRequest, baseURL string) (*models.Quiz, error) {
	q, err := s.quiz(ctx, req.FormID)
	if err != nil {
		return nil, err
	}
	inc, err := s.incidents.Get(ctx, q.IncidentID)
	if err != nil {
		return nil, err
	}

	for _, blID := range req.BusinessLines {
		if _, err := s.incidents.Repository().GetBusinessLine(ctx, blID); err != nil {
			if errors.Is(err, incident.ErrNotFound) {
				s.log.Warn("Skipping unknown business line",
					zap.String("quiz_id", q.ID),
					zap.Uint("business_line_id", blID),
				)
				continue
			}
			return nil, err
		}
		if _, err := s.repo.Add(ctx, q.ID, blID); err != nil {
			return nil, fmt.Errorf("add watchlist item: %w", err)
		}
	}

	if err := s.incidents.Block(ctx, inc.ID); err != nil {
		return nil, fmt.Errorf("block incident: %w", err)
	}
	if err := s.incidents.AddArtifact(ctx, inc.ID, artifact.TypeIncidentURL, s.IncidentURL(baseURL, inc.ID)); err != nil {
		return nil, fmt.Errorf("add incident url: %w", err)
	}
	for _, device := range artifact.Unique(artifact.Devices(inc.Description)) {
		if err := s.incidents.AddArtifact(ctx, inc.ID, artifact.TypeDevice, device); err != nil {
			return nil, fmt.Errorf("add device %q: %w", device, err)
		}
	}

	if _, err := s.incidents.AddComment(ctx, inc.ID, incident.LabelInitial, initialNotificationText, inc.OpenedByID); err != nil {
		return nil, fmt.Errorf("add initial comment: %w", err)
	}

	s.log.Info("Quiz subscribed",
		zap.String("quiz_id", q.ID),
		zap.Uint("incident_id", inc.ID),
		zap.Int("business_lines", len(req.BusinessLines)),
	)
	return s.quizzes.Get(ctx, q.ID)
}
