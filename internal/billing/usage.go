package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaybeReset restores the plan allowance when now falls in a later calendar
// month (UTC) than LastResetAt. Calling it again in the same month is a no-op.
func MaybeReset(c Counters, now time.Time, planFreeSeconds int) (Counters, bool) {
	if !c.LastResetAt.IsZero() && !laterMonth(now, c.LastResetAt) {
		return c, false
	}
	c.FreeSecondsRemaining = planFreeSeconds
	c.LastResetAt = now.UTC()
	return c, true
}

func laterMonth(now, last time.Time) bool {
	n, l := now.UTC(), last.UTC()
	return n.Year()*12+int(n.Month()) > l.Year()*12+int(l.Month())
}

// ComputeCharge spends free seconds first and bills the remainder in whole
// minutes, rounded up, at rate.
func ComputeCharge(c Counters, durationSeconds int, rate decimal.Decimal) (Counters, Charge) {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	free := c.FreeSecondsRemaining
	if free < 0 {
		free = 0
	}
	covered := min(free, durationSeconds)
	deficit := durationSeconds - covered
	minutes := (deficit + 59) / 60
	amount := rate.Mul(decimal.NewFromInt(int64(minutes)))

	c.FreeSecondsRemaining = free - covered
	c.Balance = c.Balance.Sub(amount)

	return c, Charge{
		UserID:          c.UserID,
		DurationSeconds: durationSeconds,
		FreeSecondsUsed: covered,
		BillableMinutes: minutes,
		Rate:            rate,
		Amount:          amount,
	}
}

// Summarize derives the user-facing view. Callers reset first.
func Summarize(c Counters, plan Plan) Summary {
	rate := plan.RatePerMinute
	if c.RatePerMinute != nil {
		rate = *c.RatePerMinute
	}

	planSeconds := plan.FreeSeconds()
	remaining := max(c.FreeSecondsRemaining, 0)
	used := max(planSeconds-remaining, 0)

	s := Summary{
		Period:               c.LastResetAt.UTC().Format("2006-01"),
		PlanFreeMinutes:      plan.FreeMinutes,
		FreeMinutesUsed:      (used + 59) / 60,
		FreeMinutesRemaining: remaining / 60,
		FreeSecondsRemaining: remaining,
		Balance:              c.Balance,
		Currency:             plan.Currency,
		RatePerMinute:        rate,
		LastResetAt:          c.LastResetAt,
	}
	s.TotalMinutesAvailable = s.FreeMinutesRemaining
	if rate.IsPositive() && c.Balance.IsPositive() {
		s.TotalMinutesAvailable += int(c.Balance.Div(rate).Floor().IntPart())
	}
	return s
}
