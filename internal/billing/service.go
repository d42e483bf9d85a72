package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calltrack/internal/audit"
	"calltrack/internal/auth"
	"calltrack/pkg/logger"

	"github.com/google/uuid"
)

// Service owns the usage counters.
//
// Rate and plan allowance are injected so tests can vary them; per-user rate
// overrides stored on the counters win over Plan.RatePerMinute.
type Service struct {
	repo  Repository
	plan  Plan
	audit audit.Appender
	clock func() time.Time
}

func NewService(repo Repository, plan Plan, auditor audit.Appender) *Service {
	return &Service{repo: repo, plan: plan, audit: auditor, clock: time.Now}
}

func (s *Service) Plan() Plan { return s.plan }

func (s *Service) initial(userID string, now time.Time) Counters {
	return Counters{
		UserID:               userID,
		FreeSecondsRemaining: s.plan.FreeSeconds(),
		LastResetAt:          now,
		UpdatedAt:            now,
	}
}

// ChargeRecording bills a completed recording exactly once per recordingSID.
// A repeated delivery returns the original charge with ErrAlreadyCharged.
func (s *Service) ChargeRecording(ctx context.Context, userID, callSID, recordingSID string, durationSeconds int) (Charge, error) {
	if userID == "" || recordingSID == "" {
		return Charge{}, ErrInvalidArgument
	}
	if durationSeconds < 0 {
		return Charge{}, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	var after Counters
	ch, applied, err := s.repo.ApplyCharge(ctx, userID, recordingSID, s.initial(userID, now), func(c Counters) (Counters, Charge) {
		c, _ = MaybeReset(c, now, s.plan.FreeSeconds())
		rate := s.plan.RatePerMinute
		if c.RatePerMinute != nil {
			rate = *c.RatePerMinute
		}
		next, ch := ComputeCharge(c, durationSeconds, rate)
		next.UpdatedAt = now
		after = next

		ch.ID = uuid.NewString()
		ch.CallSID = callSID
		ch.RecordingSID = recordingSID
		ch.CreatedAt = now
		return next, ch
	})
	if err != nil {
		return Charge{}, fmt.Errorf("billing: charge %s: %w", recordingSID, err)
	}
	if !applied {
		return ch, ErrAlreadyCharged
	}

	log := logger.From(ctx)
	log.Info("recording charged",
		"user_id", userID,
		"recording_sid", recordingSID,
		"duration_seconds", durationSeconds,
		"free_seconds_used", ch.FreeSecondsUsed,
		"billable_minutes", ch.BillableMinutes,
		"amount", ch.Amount.String(),
	)
	if ch.Amount.IsPositive() && after.Balance.IsNegative() {
		// Calls are never cut off mid-flight, so the balance may go below zero.
		log.Warn("usage balance negative", "user_id", userID, "balance", after.Balance.String())
	}
	return ch, nil
}

// Summary applies the monthly reset (persisting it) and derives the usage view.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	if userID == "" {
		return Summary{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	c, err := s.repo.Update(ctx, userID, s.initial(userID, now), func(c Counters) Counters {
		next, reset := MaybeReset(c, now, s.plan.FreeSeconds())
		if reset {
			next.UpdatedAt = now
		}
		return next
	})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(c, s.plan), nil
}

// Credit tops up the pay-as-you-go balance. Retrying with the same
// idempotency key does not credit twice.
func (s *Service) Credit(ctx context.Context, userID string, req CreditRequest) (Summary, error) {
	if userID == "" || !req.Amount.IsPositive() {
		return Summary{}, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return Summary{}, fmt.Errorf("%w: reason required", ErrInvalidArgument)
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	now := s.clock().UTC()
	actor, _ := auth.UserID(ctx)
	c, applied, err := s.repo.ApplyCredit(ctx, Credit{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         req.Amount,
		Reason:         reason,
		IdempotencyKey: key,
		CreatedBy:      actor,
		CreatedAt:      now,
	}, s.initial(userID, now))
	if err != nil {
		return Summary{}, err
	}
	if applied {
		audit.Record(ctx, s.audit, audit.Event{
			UserID:   userID,
			Type:     audit.EventBalanceCredited,
			TargetID: userID,
			Message:  reason,
			Metadata: map[string]any{"amount": req.Amount.String(), "idempotency_key": key},
		})
	}
	c, _ = MaybeReset(c, now, s.plan.FreeSeconds())
	return Summarize(c, s.plan), nil
}

func (s *Service) Charges(ctx context.Context, userID string, from, to time.Time) ([]Charge, error) {
	if userID == "" || !to.After(from) {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListCharges(ctx, userID, from, to)
}

// IsDuplicate reports whether err means the charge had already been applied.
func IsDuplicate(err error) bool { return errors.Is(err, ErrAlreadyCharged) }
