package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/cache"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/events"
	"table-ordering-service/internal/metrics"
	"table-ordering-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Deps are the collaborators shared by every service.
type Deps struct {
	Store     repository.Store
	Publisher events.Publisher
	Cache     cache.Cache
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func (d Deps) publisher() events.Publisher {
	if d.Publisher == nil {
		return events.NoopPublisher{}
	}
	return d.Publisher
}

// withCache fills in a process-local cache when Redis is not configured.
func (d Deps) withCache() Deps {
	if d.Cache == nil {
		d.Cache = cache.NewMemoryCache(d.Now)
	}
	return d
}

func newID() string {
	return uuid.NewString()
}

// storeErr maps a repository failure to the error taxonomy. notFound is the
// client message used when the row is missing.
func storeErr(err error, notFound string) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("%s", notFound)
	case errors.Is(err, repository.ErrStaleVersion):
		return apperr.Conflict("record was modified by another request, please retry")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("record already exists")
	case errors.Is(err, repository.ErrTxCommit):
		logger.Error().Err(err).Msg("transaction commit failed")
		return apperr.Internal(err, "changes could not be committed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Internal(err, "request cancelled")
	default:
		logger.Error().Err(err).Msg("database error")
		return apperr.Database(err, "database operation failed")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// sideEffects writes audit rows, notifications and broker events after the main
// change committed. A failure is logged, counted and reported as a warning; it
// never undoes the committed change.
type sideEffects struct {
	store     repository.Store
	publisher events.Publisher
}

func newSideEffects(d Deps) sideEffects {
	return sideEffects{store: d.Store, publisher: d.publisher()}
}

type warnings []string

func (w *warnings) add(msg string) {
	if w != nil {
		*w = append(*w, msg)
	}
}

func (e sideEffects) audit(ctx context.Context, l *entity.AuditLog, w *warnings) {
	l.ID = newID()
	if err := e.store.CreateAuditLog(ctx, l); err != nil {
		logger.Warn().Err(err).Str("action", l.Action).Str("entity_id", l.EntityID).Msg("audit log write failed")
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		w.add("audit log could not be written")
	}
}

func (e sideEffects) notify(ctx context.Context, n *entity.Notification, w *warnings) {
	n.ID = newID()
	n.Status = entity.NotificationPending
	if err := e.store.CreateNotification(ctx, n); err != nil {
		logger.Warn().Err(err).Str("type", string(n.Type)).Msg("notification write failed")
		metrics.SideEffectFailures.WithLabelValues("notification").Inc()
		w.add("staff notification could not be created")
	}
}

func (e sideEffects) publish(ctx context.Context, event entity.Event, w *warnings) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("type", string(event.Type)).Str("session_id", event.SessionID).Msg("event publish failed")
		metrics.SideEffectFailures.WithLabelValues("event").Inc()
		w.add("event could not be published")
	}
}

func strPtr(s string) *string {
	return &s
}

// Options carries the settings the individual services need.
type Options struct {
	JWTSecret string
	JWTTTL    time.Duration
	BaseURL   string
	CartTTL   time.Duration
	// CleanupInterval defaults to one hour.
	CleanupInterval   time.Duration
	StaleSweepEnabled bool
	StaleAfter        time.Duration
}

type Services struct {
	Tables        *TableService
	Sessions      *SessionService
	Orders        *OrderService
	Notifications *NotificationService
	Staff         *StaffService
	Menu          *MenuService
	Cleanup       *CleanupService
}

// NewServices builds every service over one set of dependencies so they share
// the cache used for idempotency keys and cleanup runs.
func NewServices(deps Deps, o Options) Services {
	deps = deps.withCache()
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Hour
	}
	return Services{
		Tables:        NewTableService(deps, o.BaseURL),
		Sessions:      NewSessionService(deps),
		Orders:        NewOrderService(deps, o.CartTTL),
		Notifications: NewNotificationService(deps),
		Staff:         NewStaffService(deps, o.JWTSecret, o.JWTTTL),
		Menu:          NewMenuService(deps),
		Cleanup: NewCleanupService(deps, CleanupConfig{
			CartTTL:           o.CartTTL,
			Interval:          o.CleanupInterval,
			StaleSweepEnabled: o.StaleSweepEnabled,
			StaleAfter:        o.StaleAfter,
		}),
	}
}
