// Package renotify reminds the recipients of blocked incidents whose quiz is
// still unanswered.
package renotify

import (
	"context"
	"fmt"
	"time"

	"incident-quiz/internal/incident"
	"incident-quiz/internal/models"

	"go.uber.org/zap"
)

const lockKey = "renotify"

// Locker keeps concurrent replicas from running the same pass.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type TemplateResolver interface {
	Resolve(ctx context.Context, categoryID uint, typ string) (*models.CategoryTemplate, bool, error)
}

type Job struct {
	incidents *incident.Service
	templates TemplateResolver
	lock      Locker
	threshold time.Duration
	lockTTL   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewJob builds a pass. thresholdDays applies to every category and
// severity without a stored duration.
func NewJob(incidents *incident.Service, templates TemplateResolver, lock Locker, thresholdDays int, lockTTL time.Duration, log *zap.Logger) *Job {
	return &Job{
		incidents: incidents,
		templates: templates,
		lock:      lock,
		threshold: time.Duration(thresholdDays) * 24 * time.Hour,
		lockTTL:   lockTTL,
		now:       time.Now,
		log:       log,
	}
}

// Run appends a renotification comment to every blocked incident whose
// unanswered quiz has been quiet for at least its threshold. It returns the
// number of incidents renotified.
func (j *Job) Run(ctx context.Context) (int, error) {
	token, ok, err := j.lock.Acquire(ctx, lockKey, j.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire renotify lock: %w", err)
	}
	if !ok {
		j.log.Info("Renotification pass already running elsewhere")
		return 0, nil
	}
	defer func() {
		if err := j.lock.Release(context.Background(), lockKey, token); err != nil {
			j.log.Warn("Failed to release renotify lock", zap.Error(err))
		}
	}()

	incidents, err := j.incidents.Repository().AwaitingAnswer(ctx, models.StatusBlocked)
	if err != nil {
		return 0, fmt.Errorf("list incidents awaiting an answer: %w", err)
	}

	sent := 0
	for i := range incidents {
		done, err := j.renotify(ctx, &incidents[i])
		if err != nil {
			j.log.Error("Renotification failed",
				zap.Uint("incident_id", incidents[i].ID),
				zap.Error(err),
			)
			continue
		}
		if done {
			sent++
		}
	}

	j.log.Info("Renotification pass finished",
		zap.Int("candidates", len(incidents)),
		zap.Int("renotified", sent),
	)
	return sent, nil
}

func (j *Job) thresholdFor(ctx context.Context, inc *models.Incident) (time.Duration, error) {
	d, ok, err := j.incidents.Repository().RenotifyDuration(ctx, inc.CategoryID, inc.Severity)
	if err != nil {
		return 0, err
	}
	if ok {
		return d, nil
	}
	return j.threshold, nil
}

func (j *Job) renotify(ctx context.Context, inc *models.Incident) (bool, error) {
	threshold, err := j.thresholdFor(ctx, inc)
	if err != nil {
		return false, err
	}

	last, ok, err := j.incidents.Repository().LastCommentDate(ctx, inc.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		last = inc.Date
	}
	if elapsed := j.now().Sub(last); elapsed < threshold {
		return false, nil
	}

	typ := models.RenotifyType(inc.Severity)
	if _, found, err := j.templates.Resolve(ctx, inc.CategoryID, typ); err != nil {
		return false, err
	} else if !found {
		j.log.Info("No renotification template",
			zap.Uint("incident_id", inc.ID),
			zap.String("category", inc.Category.Name),
			zap.String("type", typ),
		)
		return false, nil
	}

	text := fmt.Sprintf("Renotification of severity %d", inc.Severity)
	if _, err := j.incidents.AddComment(ctx, inc.ID, incident.RenotifyLabel(inc.Severity), text, inc.OpenedByID); err != nil {
		return false, err
	}
	return true, nil
}
