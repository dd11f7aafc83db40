// Package quiz runs the questionnaire attached to an incident: lazy
// creation, rendering, validation and the one-way switch to answered.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"incident-quiz/internal/catalog"
	"incident-quiz/internal/form"
	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNotFound        = errors.New("quiz not found")
	ErrAlreadyAnswered = errors.New("quiz already answered")
	ErrNoTemplate      = errors.New("no quiz template for the incident category")
	ErrQuizExists      = errors.New("incident already has a quiz")
)

// State is the lifecycle position of a quiz.
type State string

const (
	StatePending          State = "PENDING"
	StateSubmittedInvalid State = "SUBMITTED_INVALID"
	StateAnswered         State = "ANSWERED"
)

func StateOf(q *models.Quiz) State {
	if q.IsAnswered {
		return StateAnswered
	}
	return StatePending
}

// RequestContext describes the submission that answered a quiz.
type RequestContext struct {
	RemoteAddr string
	UserAgent  string
	UserID     *uint
}

type AnsweredEvent struct {
	Quiz    *models.Quiz
	Request RequestContext
}

// Observer is told about every quiz that was answered.
type Observer interface {
	QuizAnswered(ctx context.Context, ev AnsweredEvent) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev AnsweredEvent) error

func (f ObserverFunc) QuizAnswered(ctx context.Context, ev AnsweredEvent) error {
	return f(ctx, ev)
}

// TemplateSource returns the fully loaded template of a category.
type TemplateSource interface {
	TemplateForCategory(ctx context.Context, categoryID uint) (*models.QuizTemplate, error)
}

type IncidentReader interface {
	Get(ctx context.Context, id uint) (*models.Incident, error)
}

// Result is the outcome of a submission. Errors is keyed by group id and is
// only set in StateSubmittedInvalid.
type Result struct {
	State  State           `json:"state"`
	Quiz   *models.Quiz    `json:"quiz"`
	Schema *form.Schema    `json:"schema"`
	Errors map[uint]string `json:"errors,omitempty"`
}

type Service struct {
	repo      *Repository
	incidents IncidentReader
	templates TemplateSource
	order     form.Order
	observers []Observer
	log       *zap.Logger
}

func NewService(repo *Repository, incidents IncidentReader, templates TemplateSource, order form.Order, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		incidents: incidents,
		templates: templates,
		order:     order,
		log:       log,
	}
}

// Observe registers o. Observers run in registration order after the
// answers are committed.
func (s *Service) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Quiz, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]models.Quiz, error) {
	return s.repo.List(ctx)
}

// ForIncident returns the quiz of an incident without creating it.
func (s *Service) ForIncident(ctx context.Context, incidentID uint) (*models.Quiz, error) {
	return s.repo.ByIncident(ctx, incidentID)
}

func (s *Service) templateFor(ctx context.Context, inc *models.Incident) (*models.QuizTemplate, error) {
	tpl, err := s.templates.TemplateForCategory(ctx, inc.CategoryID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrNoTemplate
	}
	return tpl, err
}

// GetOrCreateForIncident returns the incident's quiz, creating it with the
// template of the incident's category on first use. The incident opener
// becomes the owner.
func (s *Service) GetOrCreateForIncident(ctx context.Context, incidentID uint) (*models.Quiz, error) {
	q, err := s.repo.ByIncident(ctx, incidentID)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	inc, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templateFor(ctx, inc)
	if err != nil {
		return nil, err
	}

	created := &models.Quiz{TemplateID: tpl.ID, IncidentID: inc.ID, UserID: inc.OpenedByID}
	if err := s.repo.Create(ctx, created); err != nil {
		// A concurrent request may have created it first.
		if existing, getErr := s.repo.ByIncident(ctx, incidentID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	s.log.Info("Created quiz",
		zap.String("quiz_id", created.ID),
		zap.Uint("incident_id", inc.ID),
		zap.Uint("template_id", tpl.ID),
	)
	return s.repo.Get(ctx, created.ID)
}

// Create makes the quiz of an incident explicitly. userID overrides the
// incident opener as owner when set.
func (s *Service) Create(ctx context.Context, incidentID uint, userID *uint) (*models.Quiz, error) {
	if _, err := s.repo.ByIncident(ctx, incidentID); err == nil {
		return nil, ErrQuizExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	inc, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templateFor(ctx, inc)
	if err != nil {
		return nil, err
	}
	owner := inc.OpenedByID
	if userID != nil {
		owner = userID
	}
	q := &models.Quiz{TemplateID: tpl.ID, IncidentID: inc.ID, UserID: owner}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	return s.repo.Get(ctx, q.ID)
}

func (s *Service) UpdateOwner(ctx context.Context, id string, userID *uint) (*models.Quiz, error) {
	if err := s.repo.UpdateOwner(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Form renders the quiz: editable while pending, read-only with the stored
// answers once answered.
func (s *Service) Form(ctx context.Context, q *models.Quiz) (*form.Schema, error) {
	if !q.IsAnswered {
		return form.Build(q.Template.Groups, form.Options{Order: s.order})
	}
	answers, err := s.repo.Answers(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	stored := make(map[form.AnswerKey]string, len(answers))
	for _, a := range answers {
		stored[form.AnswerKey{GroupID: a.QuestionGroupID, QuestionID: a.QuestionID}] = a.AnswerValue
	}
	return form.Build(q.Template.Groups, form.Options{Disabled: true, Answers: stored, Order: s.order})
}

// Submit validates sub against the quiz template. An invalid submission
// returns a StateSubmittedInvalid result and changes nothing. A valid one
// stores every answer and marks the quiz answered atomically, then runs the
// observers.
func (s *Service) Submit(ctx context.Context, quizID string, sub form.Submission, req RequestContext) (*Result, error) {
	q, err := s.repo.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if q.IsAnswered {
		return nil, ErrAlreadyAnswered
	}

	schema, err := form.Build(q.Template.Groups, form.Options{Order: s.order})
	if err != nil {
		return nil, err
	}
	bound, err := form.Bind(schema, sub)
	if err != nil {
		return nil, err
	}
	if !bound.Valid() {
		s.log.Info("Quiz submission rejected",
			zap.String("quiz_id", q.ID),
			zap.Int("invalid_groups", len(bound.Errors)),
		)
		return &Result{
			State:  StateSubmittedInvalid,
			Quiz:   q,
			Schema: bound.Schema,
			Errors: bound.Errors,
		}, nil
	}

	answers := make([]models.QuizAnswer, len(bound.Answers))
	for i, a := range bound.Answers {
		answers[i] = models.QuizAnswer{
			QuestionID:      a.QuestionID,
			QuestionGroupID: a.GroupID,
			AnswerValue:     a.Value,
		}
	}
	if err := s.repo.Submit(ctx, q.ID, answers); err != nil {
		return nil, err
	}
	q.IsAnswered = true
	s.log.Info("Quiz answered",
		zap.String("quiz_id", q.ID),
		zap.Uint("incident_id", q.IncidentID),
		zap.Int("answers", len(answers)),
	)

	ev := AnsweredEvent{Quiz: q, Request: req}
	for i, o := range s.observers {
		s.dispatch(ctx, i, o, ev)
	}

	readOnly, err := s.Form(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Result{State: StateAnswered, Quiz: q, Schema: readOnly}, nil
}

func (s *Service) dispatch(ctx context.Context, idx int, o Observer, ev AnsweredEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Quiz observer panicked",
				zap.Int("observer", idx),
				zap.String("quiz_id", ev.Quiz.ID),
				zap.Any("panic", r),
			)
		}
	}()
	if err := o.QuizAnswered(ctx, ev); err != nil {
		s.log.Error("Quiz observer failed",
			zap.Int("observer", idx),
			zap.String("quiz_id", ev.Quiz.ID),
			zap.Error(err),
		)
	}
}

// OrderedAnswers returns the stored answers ordered by template group, then
// by question, using the same direction as the form.
func (s *Service) OrderedAnswers(ctx context.Context, q *models.Quiz) ([]models.QuizAnswer, error) {
	answers, err := s.repo.Answers(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[form.AnswerKey]models.QuizAnswer, len(answers))
	for _, a := range answers {
		byKey[form.AnswerKey{GroupID: a.QuestionGroupID, QuestionID: a.QuestionID}] = a
	}

	ordered := make([]models.QuizAnswer, 0, len(answers))
	for _, tg := range form.SortTemplateGroups(q.Template.Groups, s.order) {
		for _, gq := range form.SortGroupQuestions(tg.Group.Questions, s.order) {
			if a, ok := byKey[form.AnswerKey{GroupID: tg.GroupID, QuestionID: gq.QuestionID}]; ok {
				ordered = append(ordered, a)
			}
		}
	}
	return ordered, nil
}

// CommentOnAnswer appends a "User Answered" comment to the quiz's incident.
// The comment drives the user-answered notification.
func CommentOnAnswer(incidents *incident.Service) Observer {
	return ObserverFunc(func(ctx context.Context, ev AnsweredEvent) error {
		_, err := incidents.AddComment(ctx, ev.Quiz.IncidentID, incident.LabelUserAnswered, "User answered the quiz", ev.Quiz.UserID)
		return err
	})
}

// Publisher pushes a typed message to everyone watching a room.
type Publisher interface {
	Broadcast(room, msgType string, data interface{})
}

// PublishAnswers announces answered quizzes in their incident's room. The
// quiz id opens the public form, so it never leaves the server.
func PublishAnswers(p Publisher) Observer {
	return ObserverFunc(func(_ context.Context, ev AnsweredEvent) error {
		p.Broadcast(strconv.FormatUint(uint64(ev.Quiz.IncidentID), 10), "quiz_answered", map[string]interface{}{
			"incident_id": ev.Quiz.IncidentID,
		})
		return nil
	})
}
