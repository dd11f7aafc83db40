package directory

import (
	"context"
	"sort"

	"incident-quiz/internal/models"

	"go.uber.org/zap"
)

// Names of the two business-line roots that map onto directory subtrees.
const (
	UsersRoot  = "Users"
	GroupsRoot = "Groups"
)

// Store is the local data the resolver falls back to.
type Store interface {
	GetBusinessLine(ctx context.Context, id uint) (*models.BusinessLine, error)
	RootBusinessLine(ctx context.Context, bl *models.BusinessLine) (*models.BusinessLine, error)
	ViewersOf(ctx context.Context, businessLineID uint, role string) ([]string, error)
}

type Options struct {
	// Enabled switches between directory lookups and access control entries.
	Enabled    bool
	ViewerRole string
}

// Recipient is the resolved responsible party of a quiz.
type Recipient struct {
	Mail    string
	Enabled bool
	// Group is set when the directory answered with a group entry.
	Group bool
}

type Resolver struct {
	store    Store
	searcher *Retrier
	opts     Options
	log      *zap.Logger
}

func NewResolver(store Store, searcher *Retrier, opts Options, log *zap.Logger) *Resolver {
	return &Resolver{store: store, searcher: searcher, opts: opts, log: log}
}

func (r *Resolver) enabled() bool {
	return r.opts.Enabled && r.searcher != nil
}

// Watchers returns the sorted, de-duplicated e-mail addresses of the
// watch-list business lines. Lookups that fail contribute nothing.
func (r *Resolver) Watchers(ctx context.Context, items []models.WatchlistItem) []string {
	set := map[string]struct{}{}
	for _, item := range items {
		bl := item.BusinessLine
		if bl == nil {
			loaded, err := r.store.GetBusinessLine(ctx, item.BusinessLineID)
			if err != nil {
				r.log.Warn("Skipping watch-list item", zap.Uint("business_line_id", item.BusinessLineID), zap.Error(err))
				continue
			}
			bl = loaded
		}

		var mails []string
		if r.enabled() {
			mails = r.directoryMails(ctx, bl)
		} else {
			viewers, err := r.store.ViewersOf(ctx, bl.ID, r.opts.ViewerRole)
			if err != nil {
				r.log.Warn("Failed to load business line viewers", zap.String("business_line", bl.Name), zap.Error(err))
				continue
			}
			mails = viewers
		}
		for _, m := range mails {
			if m != "" {
				set[m] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) directoryMails(ctx context.Context, bl *models.BusinessLine) []string {
	root, err := r.store.RootBusinessLine(ctx, bl)
	if err != nil {
		r.log.Warn("Failed to find business line root", zap.String("business_line", bl.Name), zap.Error(err))
		return nil
	}

	var kind QueryKind
	switch root.Name {
	case UsersRoot:
		kind = KindUser
	case GroupsRoot:
		kind = KindGroup
	default:
		r.log.Warn("Business line is outside the directory trees",
			zap.String("business_line", bl.Name),
			zap.String("root", root.Name),
		)
		return nil
	}

	entries, err := r.searcher.Search(ctx, bl.Name, kind)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.CommonName == bl.Name && e.Mail != "" {
			return []string{e.Mail}
		}
	}
	return nil
}

// Responsible resolves the quiz owner. Without a usable directory answer the
// stored address is used and the account counts as enabled.
func (r *Resolver) Responsible(ctx context.Context, user *models.User) Recipient {
	fallback := Recipient{Mail: user.Email, Enabled: true}
	if !r.enabled() {
		return fallback
	}

	entries, err := r.searcher.Search(ctx, user.Username, KindUser)
	if err != nil {
		return fallback
	}
	for _, e := range entries {
		if e.CommonName != user.Username {
			continue
		}
		mail := e.Mail
		if mail == "" {
			mail = user.Email
		}
		return Recipient{Mail: mail, Enabled: e.Enabled(), Group: e.Kind == KindGroup}
	}
	return fallback
}
