package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var rate = decimal.RequireFromString("0.0085")

func TestComputeCharge_FreeThenBalance(t *testing.T) {
	c := Counters{UserID: "u1", FreeSecondsRemaining: 600, Balance: decimal.RequireFromString("10")}

	next, ch := ComputeCharge(c, 900, rate)
	if ch.BillableMinutes != 5 {
		t.Fatalf("expected 5 billable minutes, got %d", ch.BillableMinutes)
	}
	if !ch.Amount.Equal(decimal.RequireFromString("0.0425")) {
		t.Fatalf("expected 0.0425, got %s", ch.Amount)
	}
	if next.FreeSecondsRemaining != 0 {
		t.Fatalf("expected free seconds exhausted, got %d", next.FreeSecondsRemaining)
	}
	if !next.Balance.Equal(decimal.RequireFromString("9.9575")) {
		t.Fatalf("expected balance 9.9575, got %s", next.Balance)
	}
}

func TestComputeCharge_CoveredByFree(t *testing.T) {
	c := Counters{FreeSecondsRemaining: 600, Balance: decimal.RequireFromString("1")}
	next, ch := ComputeCharge(c, 125, rate)
	if !ch.Amount.IsZero() || ch.BillableMinutes != 0 {
		t.Fatalf("expected no charge, got %+v", ch)
	}
	if next.FreeSecondsRemaining != 475 || !next.Balance.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("unexpected counters %+v", next)
	}
}

func TestComputeCharge_RoundsPartialMinuteUp(t *testing.T) {
	_, ch := ComputeCharge(Counters{}, 61, rate)
	if ch.BillableMinutes != 2 {
		t.Fatalf("expected 2 minutes, got %d", ch.BillableMinutes)
	}
}

func TestComputeCharge_BalanceMayGoNegative(t *testing.T) {
	next, _ := ComputeCharge(Counters{}, 60, decimal.RequireFromString("0.5"))
	if !next.Balance.Equal(decimal.RequireFromString("-0.5")) {
		t.Fatalf("expected -0.5, got %s", next.Balance)
	}
}

func TestMaybeReset(t *testing.T) {
	sept := time.Date(2026, time.September, 30, 23, 0, 0, 0, time.UTC)
	oct := time.Date(2026, time.October, 1, 0, 0, 1, 0, time.UTC)

	c := Counters{FreeSecondsRemaining: 12, LastResetAt: sept}
	same, reset := MaybeReset(c, sept.Add(30*time.Minute), 6000)
	if reset || same.FreeSecondsRemaining != 12 {
		t.Fatalf("same month must not reset: %+v", same)
	}

	next, reset := MaybeReset(c, oct, 6000)
	if !reset || next.FreeSecondsRemaining != 6000 || !next.LastResetAt.Equal(oct) {
		t.Fatalf("expected reset, got %+v", next)
	}

	again, reset := MaybeReset(next, oct.Add(time.Hour), 6000)
	if reset || again != next {
		t.Fatalf("second reset in the same month must be a no-op")
	}

	// December to January crosses the year.
	dec := Counters{LastResetAt: time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC)}
	if _, reset := MaybeReset(dec, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 60); !reset {
		t.Fatalf("expected reset across year boundary")
	}
}

func TestSummarize(t *testing.T) {
	plan := Plan{FreeMinutes: 100, RatePerMinute: rate, Currency: "USD"}
	c := Counters{
		FreeSecondsRemaining: 90 * 60,
		Balance:              decimal.RequireFromString("0.10"),
		LastResetAt:          time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
	}
	s := Summarize(c, plan)
	if s.FreeMinutesRemaining != 90 || s.FreeMinutesUsed != 10 {
		t.Fatalf("unexpected free minutes %+v", s)
	}
	// floor(0.10 / 0.0085) = 11
	if s.TotalMinutesAvailable != 101 {
		t.Fatalf("expected 101 minutes available, got %d", s.TotalMinutesAvailable)
	}
	if s.Period != "2026-10" {
		t.Fatalf("unexpected period %q", s.Period)
	}

	override := decimal.RequireFromString("0.05")
	c.RatePerMinute = &override
	if s := Summarize(c, plan); !s.RatePerMinute.Equal(override) || s.TotalMinutesAvailable != 92 {
		t.Fatalf("expected override rate applied, got %+v", s)
	}

	c.Balance = decimal.RequireFromString("-1")
	if s := Summarize(c, plan); s.TotalMinutesAvailable != 90 {
		t.Fatalf("negative balance adds nothing, got %d", s.TotalMinutesAvailable)
	}
}
