package reporting

import (
	"context"
	"errors"
	"time"

	"calltrack/internal/billing"
	"calltrack/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// maxRange bounds a single report so it stays a cheap scan.
const maxRange = 366 * 24 * time.Hour

// CallSource and ChargeSource must filter by user.
type CallSource interface {
	ListBetween(ctx context.Context, userID string, from, to time.Time) ([]calls.Record, error)
}

type ChargeSource interface {
	Charges(ctx context.Context, userID string, from, to time.Time) ([]billing.Charge, error)
}

type Service struct {
	calls    CallSource
	charges  ChargeSource
	currency string
}

func NewService(callSrc CallSource, chargeSrc ChargeSource, currency string) *Service {
	return &Service{calls: callSrc, charges: chargeSrc, currency: currency}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.UserID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.To.Sub(req.Range.From) > maxRange {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.calls == nil || s.charges == nil {
		return CallsSummary{}, errors.New("reporting: sources not configured")
	}

	rows, err := s.calls.ListBetween(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{UserID: req.UserID, Range: req.Range, Currency: s.currency}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.Direction == calls.DirectionOutbound {
			out.OutboundCalls++
		} else {
			out.InboundCalls++
		}
		if c.Recording != nil {
			out.RecordedCalls++
			out.RecordedSeconds += c.Recording.DurationSeconds
		}
		switch c.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusRinging, calls.StatusQueued:
			// not counted separately
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}

	charges, err := s.charges.Charges(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}
	for _, ch := range charges {
		out.FreeSecondsUsed += ch.FreeSecondsUsed
		out.BillableMinutes += ch.BillableMinutes
		out.BilledAmount = out.BilledAmount.Add(ch.Amount)
	}
	return out, nil
}
