package forwarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/numbers"
	"calltrack/internal/telephony"

	"github.com/google/uuid"
)

// NumberOwnership confirms a number belongs to the caller.
type NumberOwnership interface {
	Get(ctx context.Context, userID, id string) (numbers.OwnedNumber, error)
}

type Service struct {
	repo    Repository
	numbers NumberOwnership
	audit   audit.Appender
	clock   func() time.Time
}

func NewService(repo Repository, owned NumberOwnership, auditor audit.Appender) *Service {
	return &Service{repo: repo, numbers: owned, audit: auditor, clock: time.Now}
}

func (s *Service) owned(ctx context.Context, userID, numberID string) (numbers.OwnedNumber, error) {
	n, err := s.numbers.Get(ctx, userID, numberID)
	if errors.Is(err, numbers.ErrNotFound) {
		return numbers.OwnedNumber{}, ErrNotFound
	}
	return n, err
}

func (s *Service) Get(ctx context.Context, userID, numberID string) (Rule, error) {
	if _, err := s.owned(ctx, userID, numberID); err != nil {
		return Rule{}, err
	}
	return s.repo.Get(ctx, userID, numberID)
}

// GetByNumberID is the router's read path; ownership was established by the
// number lookup.
func (s *Service) GetByNumberID(ctx context.Context, numberID string) (Rule, error) {
	return s.repo.GetByNumberID(ctx, numberID)
}

func (s *Service) Upsert(ctx context.Context, userID, numberID string, req UpsertRequest) (Rule, error) {
	n, err := s.owned(ctx, userID, numberID)
	if err != nil {
		return Rule{}, err
	}
	r, err := normalize(req, n.Number)
	if err != nil {
		return Rule{}, err
	}

	now := s.clock().UTC()
	r.ID = uuid.NewString()
	r.UserID = userID
	r.NumberID = numberID
	r.CreatedAt = now
	r.UpdatedAt = now

	out, err := s.repo.Upsert(ctx, r)
	if err != nil {
		return Rule{}, err
	}
	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventForwardingUpdated,
		TargetID: numberID,
		Metadata: map[string]any{"forward_to": out.ForwardTo, "enabled": out.Enabled, "type": string(out.Type)},
	})
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID, numberID string) error {
	if _, err := s.owned(ctx, userID, numberID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, numberID); err != nil {
		return err
	}
	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventForwardingDeleted,
		TargetID: numberID,
	})
	return nil
}

func normalize(req UpsertRequest, ownNumber string) (Rule, error) {
	target := strings.TrimSpace(req.ForwardTo)
	if !telephony.IsE164(target) {
		return Rule{}, fmt.Errorf("%w: forward_to must be E.164", ErrInvalidArgument)
	}
	if target == ownNumber {
		return Rule{}, fmt.Errorf("%w: forward_to must differ from the number itself", ErrInvalidArgument)
	}

	typ := req.Type
	if typ == "" {
		typ = TypeAlways
	}
	if !typ.Valid() {
		return Rule{}, fmt.Errorf("%w: unknown forwarding type %q", ErrInvalidArgument, typ)
	}

	timeout := req.RingTimeoutSeconds
	if timeout == 0 {
		timeout = DefaultRingTimeout
	}
	if timeout < MinRingTimeout || timeout > MaxRingTimeout {
		return Rule{}, fmt.Errorf("%w: ring_timeout_seconds must be between %d and %d", ErrInvalidArgument, MinRingTimeout, MaxRingTimeout)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return Rule{ForwardTo: target, Enabled: enabled, Type: typ, RingTimeoutSeconds: timeout}, nil
}
