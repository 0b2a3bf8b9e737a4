// Package quota enforces the per-caller daily analysis limit. Usage resets on
// the first check of each calendar day; a configurable allow-list of emails
// bypasses the limit entirely.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/store"
)

// ProfileStore is the slice of the persistence layer quota needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, email string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
	IncrementAnalyses(ctx context.Context, email string) error
}

// ExceededError reports a caller who has used up today's allowance.
type ExceededError struct {
	Limit int
	Used  int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota: daily limit of %d analyses reached (%d used)", e.Limit, e.Used)
}

// Manager checks and records quota usage against stored profiles.
type Manager struct {
	store     ProfileStore
	limit     int
	unlimited map[string]bool
	now       func() time.Time
}

func New(s ProfileStore, limit int, unlimitedEmails []string) *Manager {
	allow := make(map[string]bool, len(unlimitedEmails))
	for _, e := range unlimitedEmails {
		allow[e] = true
	}
	return &Manager{store: s, limit: limit, unlimited: allow, now: time.Now}
}

// Check verifies the caller may run one more analysis today. A missing
// profile is created on first contact. Returns *ExceededError when the
// allowance is spent.
func (m *Manager) Check(ctx context.Context, email string) error {
	if m.unlimited[email] {
		return nil
	}

	p, err := m.store.GetProfile(ctx, email)
	switch {
	case eris.Is(err, store.ErrNotFound):
		p = &model.Profile{Email: email, LastResetDate: m.now()}
		if err := m.store.UpsertProfile(ctx, p); err != nil {
			return eris.Wrap(err, "quota: create profile")
		}
	case err != nil:
		return eris.Wrap(err, "quota: load profile")
	}

	if m.resetDue(p.LastResetDate) {
		p.AnalysesCount = 0
		p.LastResetDate = m.now()
		if err := m.store.UpsertProfile(ctx, p); err != nil {
			return eris.Wrap(err, "quota: reset daily usage")
		}
	}

	if p.AnalysesCount >= m.limit {
		return &ExceededError{Limit: m.limit, Used: p.AnalysesCount}
	}
	return nil
}

// Record counts one completed analysis. Failures are logged but never
// surfaced; a finished analysis is not discarded over a bookkeeping error.
func (m *Manager) Record(ctx context.Context, email string) {
	if m.unlimited[email] {
		return
	}
	if err := m.store.IncrementAnalyses(ctx, email); err != nil {
		zap.L().Warn("failed to record analysis against quota",
			zap.String("email", email),
			zap.Error(err))
	}
}

// resetDue compares calendar dates, not elapsed hours: usage from 23:59
// resets at midnight.
func (m *Manager) resetDue(lastReset time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	return m.now().Format("2006-01-02") != lastReset.Format("2006-01-02")
}
