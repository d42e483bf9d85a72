package audit

import (
	"context"
	"errors"
	"time"

	"calltrack/internal/auth"
	"calltrack/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Event, error)
}

// Appender is what other packages depend on.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.UserID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.ActorUserID == "" {
		e.ActorUserID, _ = auth.UserID(ctx)
	}
	if e.ActorRole == "" {
		e.ActorRole, _ = auth.Role(ctx)
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if userID == "" {
		return nil, ErrInvalidEvent
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// Record appends e and only logs on failure. a may be nil.
func Record(ctx context.Context, a Appender, e Event) {
	if a == nil {
		return
	}
	if err := a.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "user_id", e.UserID, "err", err)
	}
}
