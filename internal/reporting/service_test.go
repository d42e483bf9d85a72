package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"calltrack/internal/billing"
	"calltrack/internal/calls"

	"github.com/shopspring/decimal"
)

type callRows []calls.Record

func (r callRows) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]calls.Record, error) {
	var out []calls.Record
	for _, c := range r {
		if c.UserID == userID && !c.CreatedAt.Before(from) && c.CreatedAt.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

type chargeRows []billing.Charge

func (r chargeRows) Charges(ctx context.Context, userID string, from, to time.Time) ([]billing.Charge, error) {
	var out []billing.Charge
	for _, c := range r {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestCallsSummary_Aggregates(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	rows := callRows{
		{CallSID: "CA1", UserID: "u1", Direction: calls.DirectionInbound, Status: calls.StatusCompleted, DurationSeconds: 900, CreatedAt: now,
			Recording: &calls.Recording{SID: "RE1", DurationSeconds: 900}},
		{CallSID: "CA2", UserID: "u1", Direction: calls.DirectionOutbound, Status: calls.StatusNoAnswer, CreatedAt: now},
		{CallSID: "CA3", UserID: "u1", Direction: calls.DirectionInbound, Status: calls.StatusBusy, DurationSeconds: 30, CreatedAt: now},
		{CallSID: "CA4", UserID: "u2", Direction: calls.DirectionInbound, Status: calls.StatusCompleted, DurationSeconds: 50, CreatedAt: now},
	}
	charges := chargeRows{
		{UserID: "u1", RecordingSID: "RE1", FreeSecondsUsed: 600, BillableMinutes: 5, Amount: decimal.RequireFromString("0.0425")},
		{UserID: "u2", RecordingSID: "RE2", BillableMinutes: 1, Amount: decimal.RequireFromString("0.0085")},
	}
	svc := NewService(rows, charges, "USD")

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{UserID: "u1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 3 || out.InboundCalls != 2 || out.OutboundCalls != 1 {
		t.Fatalf("unexpected totals %+v", out)
	}
	if out.CompletedCalls != 1 || out.NoAnswerCalls != 1 || out.BusyCalls != 1 {
		t.Fatalf("unexpected status counts %+v", out)
	}
	if out.TotalDurationSeconds != 930 || out.AverageDurationSeconds != 310 {
		t.Fatalf("unexpected durations %+v", out)
	}
	if out.RecordedCalls != 1 || out.RecordedSeconds != 900 {
		t.Fatalf("unexpected recordings %+v", out)
	}
	if !out.BilledAmount.Equal(decimal.RequireFromString("0.0425")) || out.BillableMinutes != 5 || out.FreeSecondsUsed != 600 {
		t.Fatalf("unexpected billing %+v", out)
	}
}

func TestCallsSummary_RejectsBadRange(t *testing.T) {
	svc := NewService(callRows{}, chargeRows{}, "USD")
	now := time.Now()
	cases := []CallsSummaryRequest{
		{Range: TimeRange{From: now, To: now.Add(time.Hour)}},
		{UserID: "u1", Range: TimeRange{From: now, To: now}},
		{UserID: "u1", Range: TimeRange{To: now}},
		{UserID: "u1", Range: TimeRange{From: now.Add(-400 * 24 * time.Hour), To: now}},
	}
	for i, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}
