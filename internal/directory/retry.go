package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrUnavailable is returned once every attempt against the directory failed.
var ErrUnavailable = errors.New("directory unavailable")

// Alerter reaches the system administrators.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Retrier runs directory searches a fixed number of times with a fixed
// delay between attempts. Exhaustion raises one admin alert.
type Retrier struct {
	client   Client
	alerter  Alerter
	attempts int
	delay    time.Duration
	log      *zap.Logger
}

func NewRetrier(client Client, alerter Alerter, attempts int, delay time.Duration, log *zap.Logger) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{client: client, alerter: alerter, attempts: attempts, delay: delay, log: log}
}

func (r *Retrier) Search(ctx context.Context, query string, kind QueryKind) ([]Entry, error) {
	var (
		entries []Entry
		attempt int
	)
	op := func() error {
		attempt++
		res, err := r.client.Search(ctx, query, kind)
		if err != nil {
			r.log.Warn("Directory search failed",
				zap.String("query", query),
				zap.Stringer("kind", kind),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		entries = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), uint64(r.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		r.alert(ctx, query, kind, attempt, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return entries, nil
}

func (r *Retrier) alert(ctx context.Context, query string, kind QueryKind, attempts int, cause error) {
	if r.alerter == nil {
		return
	}
	subject := "Directory lookup failed"
	body := fmt.Sprintf("Searching the %s directory for %q failed %d times. Last error: %v",
		kind, query, attempts, cause)
	if err := r.alerter.Alert(ctx, subject, body); err != nil {
		r.log.Error("Failed to alert administrators", zap.Error(err))
	}
}
