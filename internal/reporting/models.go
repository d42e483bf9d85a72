package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics for one user.
type CallsSummaryRequest struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`
}

type CallsSummary struct {
	UserID string    `json:"user_id"`
	Range  TimeRange `json:"range"`

	TotalCalls      int `json:"total_calls"`
	InboundCalls    int `json:"inbound_calls"`
	OutboundCalls   int `json:"outbound_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls   int `json:"recorded_calls"`
	RecordedSeconds int `json:"recorded_seconds"`
	FreeSecondsUsed int `json:"free_seconds_used"`
	BillableMinutes int `json:"billable_minutes"`

	// BilledAmount sums recording charges created in the range.
	BilledAmount decimal.Decimal `json:"billed_amount"`
	Currency     string          `json:"currency,omitempty"`
}
