// Package notify turns incident comments into e-mail notifications.
package notify

import (
	"context"
	"errors"
	"fmt"

	"incident-quiz/internal/directory"
	"incident-quiz/internal/models"
	"incident-quiz/internal/quiz"

	"go.uber.org/zap"
)

// QuizSource loads the quiz of an incident and its answers in display order.
// ForIncident returns quiz.ErrNotFound when the incident has no quiz.
type QuizSource interface {
	ForIncident(ctx context.Context, incidentID uint) (*models.Quiz, error)
	OrderedAnswers(ctx context.Context, q *models.Quiz) ([]models.QuizAnswer, error)
}

// Recipients resolves addressees for a quiz.
type Recipients interface {
	Watchers(ctx context.Context, items []models.WatchlistItem) []string
	Responsible(ctx context.Context, user *models.User) directory.Recipient
}

type Notifier struct {
	templates  *Templates
	renderer   *Renderer
	quizzes    QuizSource
	recipients Recipients
	mailer     Mailer
	from       string
	log        *zap.Logger
}

func NewNotifier(templates *Templates, renderer *Renderer, quizzes QuizSource, recipients Recipients, mailer Mailer, from string, log *zap.Logger) *Notifier {
	return &Notifier{
		templates:  templates,
		renderer:   renderer,
		quizzes:    quizzes,
		recipients: recipients,
		mailer:     mailer,
		from:       from,
		log:        log,
	}
}

// CommentAdded sends the notification bound to the comment's action, if any.
func (n *Notifier) CommentAdded(ctx context.Context, inc *models.Incident, c *models.Comment) error {
	typ := TemplateType(c.Action.Name)
	action := ParseAction(c.Action.Name)
	log := n.log.With(
		zap.Uint("incident_id", inc.ID),
		zap.String("action", typ),
	)

	tpl, found, err := n.templates.Resolve(ctx, inc.CategoryID, typ)
	if err != nil {
		return fmt.Errorf("resolve template: %w", err)
	}
	if !found {
		log.Info("No notification template, nothing to do")
		return nil
	}

	q, err := n.quizzes.ForIncident(ctx, inc.ID)
	if errors.Is(err, quiz.ErrNotFound) {
		log.Info("Incident has no quiz, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}

	cc := n.recipients.Watchers(ctx, q.Watchlist)
	recipient := directory.Recipient{Enabled: true}
	var to []string
	if q.User != nil {
		recipient = n.recipients.Responsible(ctx, q.User)
		if recipient.Mail != "" {
			to = []string{recipient.Mail}
		}
	}
	if len(to) == 0 {
		to, cc = cc, nil
	}
	if len(to) == 0 {
		log.Info("Quiz has no recipients, nothing to do", zap.String("quiz_id", q.ID))
		return nil
	}

	var answers []models.QuizAnswer
	if action == ActionUserAnswered {
		answers, err = n.quizzes.OrderedAnswers(ctx, q)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
	}

	data, err := n.buildContext(ctx, contextInput{
		action:    action,
		incident:  inc,
		comment:   c,
		quiz:      q,
		recipient: recipient,
		answers:   answers,
	})
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	msg, err := n.renderer.Render(tpl, data)
	if err != nil {
		return err
	}

	log.Info("Sending notification", zap.Strings("to", to), zap.Strings("cc", cc))
	return n.mailer.Send(ctx, Email{
		From:    n.from,
		To:      to,
		Cc:      cc,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}
