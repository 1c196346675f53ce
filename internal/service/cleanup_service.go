package service

import (
	"context"
	"time"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/metrics"
	"table-ordering-service/internal/repository"
)

const cartCleanupJob = "cart"

type CleanupConfig struct {
	CartTTL           time.Duration
	Interval          time.Duration
	StaleSweepEnabled bool
	StaleAfter        time.Duration
}

type CleanupService struct {
	deps    Deps
	effects sideEffects
	cfg     CleanupConfig
}

func NewCleanupService(deps Deps, cfg CleanupConfig) *CleanupService {
	if cfg.CartTTL <= 0 {
		cfg.CartTTL = DefaultCartTTL
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	deps = deps.withCache()
	return &CleanupService{deps: deps, effects: newSideEffects(deps), cfg: cfg}
}

type CleanupResult struct {
	Ran      bool      `json:"ran"`
	Deleted  int64     `json:"deleted"`
	LastRun  time.Time `json:"last_run"`
	Cutoff   time.Time `json:"cutoff"`
	Warnings []string  `json:"warnings,omitempty"`
}

// CleanupCarts deletes cart orders older than the cart TTL across all sessions.
// A run younger than the configured interval is skipped unless force is set.
func (s *CleanupService) CleanupCarts(ctx context.Context, force bool) (*CleanupResult, error) {
	return s.cleanupCarts(ctx, force, s.cfg.Interval)
}

// scheduledCleanup is the ticker's run. Ticks arrive about one interval apart
// with some wake-up jitter, so only a run recorded in the last half interval
// (an API or CLI run) makes it skip.
func (s *CleanupService) scheduledCleanup(ctx context.Context) (*CleanupResult, error) {
	return s.cleanupCarts(ctx, false, s.cfg.Interval/2)
}

func (s *CleanupService) cleanupCarts(ctx context.Context, force bool, minGap time.Duration) (*CleanupResult, error) {
	now := s.deps.now()
	res := &CleanupResult{}
	var w warnings

	last, err := s.deps.Cache.LastRun(ctx, cartCleanupJob)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read last cleanup run")
		w.add("last run time unavailable, running anyway")
		last = time.Time{}
	}
	res.LastRun = last
	if !force && !last.IsZero() && minGap > 0 && now.Sub(last) < minGap {
		logger.Debug().Time("last_run", last).Msg("cart cleanup skipped, ran recently")
		res.Warnings = w
		return res, nil
	}

	res.Cutoff = now.Add(-s.cfg.CartTTL)
	n, err := s.deps.Store.DeleteCartOrdersBefore(ctx, "", res.Cutoff)
	if err != nil {
		return nil, storeErr(err, "")
	}
	res.Ran, res.Deleted = true, n
	metrics.CartOrdersDeleted.Add(float64(n))

	if err := s.deps.Cache.MarkRun(ctx, cartCleanupJob, now); err != nil {
		logger.Warn().Err(err).Msg("could not record cleanup run")
		w.add("cleanup ran but its time could not be recorded")
	} else {
		res.LastRun = now
	}
	res.Warnings = w
	logger.Info().Int64("deleted", n).Time("cutoff", res.Cutoff).Msg("cart cleanup finished")
	return res, nil
}

type SweepResult struct {
	Enabled   bool     `json:"enabled"`
	Cancelled []string `json:"cancelled"`
	Skipped   []string `json:"skipped"`
	Warnings  []string `json:"warnings,omitempty"`
}

// SweepStaleSessions cancels active sessions nobody has touched for a while and
// that have nothing to pay for. Sessions with billable orders are only reported.
func (s *CleanupService) SweepStaleSessions(ctx context.Context) (*SweepResult, error) {
	res := &SweepResult{Enabled: s.cfg.StaleSweepEnabled, Cancelled: []string{}, Skipped: []string{}}
	if !s.cfg.StaleSweepEnabled {
		return res, nil
	}
	now := s.deps.now()
	cutoff := now.Add(-s.cfg.StaleAfter)
	idle, err := s.deps.Store.ListIdleSessions(ctx, cutoff)
	if err != nil {
		return nil, storeErr(err, "")
	}

	var w warnings
	for _, candidate := range idle {
		lines, err := s.deps.Store.ListOrderLines(ctx, candidate.ID)
		if err != nil {
			return nil, storeErr(err, "")
		}
		lastActivity := candidate.UpdatedAt
		billable := false
		for _, l := range lines {
			if l.UpdatedAt.After(lastActivity) {
				lastActivity = l.UpdatedAt
			}
			billable = billable || l.Status.Billable()
		}
		if !lastActivity.Before(cutoff) {
			continue
		}
		if billable {
			res.Skipped = append(res.Skipped, candidate.ID)
			continue
		}

		var tableID string
		err = s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
			sess, err := tx.GetSessionForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if sess.Version != candidate.Version {
				return repository.ErrStaleVersion
			}
			tbl, err := endSession(ctx, tx, sess, entity.SessionCancelled, now)
			if err != nil {
				return err
			}
			tableID = tbl.ID
			return nil
		})
		if err != nil {
			err = storeErr(err, "session not found")
			if k := apperr.KindOf(err); k == apperr.KindConflict || k == apperr.KindNotFound {
				// touched since it was listed
				res.Skipped = append(res.Skipped, candidate.ID)
				continue
			}
			return nil, err
		}
		res.Cancelled = append(res.Cancelled, candidate.ID)
		s.effects.audit(ctx, &entity.AuditLog{
			Action:     "session_stale_cancelled",
			EntityType: "session",
			EntityID:   candidate.ID,
			Actor:      "system",
			Details:    entity.Metadata{"table_id": tableID, "idle_since": lastActivity.Format(time.RFC3339)},
			CreatedAt:  now,
		}, &w)
		s.effects.publish(ctx, entity.Event{
			Type:       entity.EventSessionClosed,
			SessionID:  candidate.ID,
			TableID:    tableID,
			Payload:    map[string]any{"status": string(entity.SessionCancelled), "reason": "stale"},
			OccurredAt: now,
		}, &w)
	}
	res.Warnings = w
	logger.Info().Int("cancelled", len(res.Cancelled)).Int("skipped", len(res.Skipped)).Msg("stale session sweep finished")
	return res, nil
}

// RunPeriodically triggers CleanupCarts every interval until ctx is done.
func (s *CleanupService) RunPeriodically(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.scheduledCleanup(ctx); err != nil {
				logger.Error().Err(err).Msg("scheduled cart cleanup failed")
			}
		}
	}
}
