package numbers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"calltrack/internal/audit"
	"calltrack/internal/telephony"
	"calltrack/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxLabelLen = 64

type Options struct {
	// VoiceURL is set as the inbound webhook on purchased numbers.
	VoiceURL string
	// StatusURL receives parent leg status events for inbound calls.
	StatusURL   string
	MonthlyCost decimal.Decimal
}

// Service manages the phone number registry.
type Service struct {
	repo     Repository
	provider telephony.Provider
	audit    audit.Appender
	opts     Options
	clock    func() time.Time
}

func NewService(repo Repository, provider telephony.Provider, auditor audit.Appender, opts Options) *Service {
	return &Service{repo: repo, provider: provider, audit: auditor, opts: opts, clock: time.Now}
}

func (s *Service) Purchase(ctx context.Context, userID string, req PurchaseRequest) (OwnedNumber, error) {
	if userID == "" {
		return OwnedNumber{}, ErrInvalidArgument
	}
	number := strings.TrimSpace(req.Number)
	if !telephony.IsE164(number) {
		return OwnedNumber{}, fmt.Errorf("%w: number must be E.164", ErrInvalidArgument)
	}
	label := strings.TrimSpace(req.Label)
	if utf8.RuneCountInString(label) > maxLabelLen {
		return OwnedNumber{}, fmt.Errorf("%w: label longer than %d characters", ErrInvalidArgument, maxLabelLen)
	}

	if _, err := s.repo.GetByNumber(ctx, number); err == nil {
		return OwnedNumber{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return OwnedNumber{}, err
	}

	bought, err := s.provider.BuyNumber(ctx, telephony.BuyNumberRequest{
		Number:   number,
		Label:    label,
		VoiceURL: s.opts.VoiceURL,

		StatusCallbackURL: s.opts.StatusURL,
	})
	if err != nil {
		return OwnedNumber{}, fmt.Errorf("numbers: purchase: %w", err)
	}

	now := s.clock().UTC()
	n := OwnedNumber{
		ID:          uuid.NewString(),
		UserID:      userID,
		Number:      bought.Number,
		ProviderSID: bought.ProviderNumberID,
		Label:       label,
		Active:      true,
		Capability:  DefaultCapabilities,
		MonthlyCost: s.opts.MonthlyCost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		// Someone else won the race; give the number back.
		if rerr := s.provider.ReleaseNumber(ctx, telephony.ReleaseNumberRequest{
			Number:           n.Number,
			ProviderNumberID: n.ProviderSID,
		}); rerr != nil {
			logger.From(ctx).Error("release after failed insert", "number", n.Number, "err", rerr)
		}
		return OwnedNumber{}, err
	}

	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventNumberPurchased,
		TargetID: n.ID,
		Message:  n.Number,
	})
	return n, nil
}

func (s *Service) Release(ctx context.Context, userID, id string) error {
	n, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if n.ProviderSID != "" {
		if err := s.provider.ReleaseNumber(ctx, telephony.ReleaseNumberRequest{
			Number:           n.Number,
			ProviderNumberID: n.ProviderSID,
		}); err != nil {
			return fmt.Errorf("numbers: release: %w", err)
		}
	}

	now := s.clock().UTC()
	n.Active = false
	n.ReleasedAt = &now
	n.UpdatedAt = now
	if err := s.repo.Update(ctx, n); err != nil {
		return err
	}

	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventNumberReleased,
		TargetID: n.ID,
		Message:  n.Number,
	})
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]OwnedNumber, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (OwnedNumber, error) {
	if userID == "" || id == "" {
		return OwnedNumber{}, ErrNotFound
	}
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) Update(ctx context.Context, userID, id string, req UpdateRequest) (OwnedNumber, error) {
	n, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return OwnedNumber{}, err
	}
	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if utf8.RuneCountInString(label) > maxLabelLen {
			return OwnedNumber{}, fmt.Errorf("%w: label longer than %d characters", ErrInvalidArgument, maxLabelLen)
		}
		n.Label = label
	}
	if req.Active != nil {
		n.Active = *req.Active
	}
	n.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, n); err != nil {
		return OwnedNumber{}, err
	}

	audit.Record(ctx, s.audit, audit.Event{
		UserID:   userID,
		Type:     audit.EventNumberUpdated,
		TargetID: n.ID,
	})
	return n, nil
}

// GetByNumber resolves a called number for routing. Paused numbers are
// reported as not found.
func (s *Service) GetByNumber(ctx context.Context, number string) (OwnedNumber, error) {
	n, err := s.repo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return OwnedNumber{}, err
	}
	if !n.Routable() {
		return OwnedNumber{}, ErrNotFound
	}
	return n, nil
}

// OwnerOf resolves the owner of a number even when routing is paused; call
// tracking still attributes calls to it.
func (s *Service) OwnerOf(ctx context.Context, number string) (OwnedNumber, error) {
	return s.repo.GetByNumber(ctx, strings.TrimSpace(number))
}
