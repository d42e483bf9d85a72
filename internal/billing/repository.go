package billing

import (
	"context"
	"time"
)

// Repository persists counters together with the immutable charge and
// credit rows that explain every balance change.
type Repository interface {
	// Update runs fn on the locked counters row, creating it from init when
	// absent, and persists the result.
	Update(ctx context.Context, userID string, init Counters, fn func(Counters) Counters) (Counters, error)

	// ApplyCharge stores the charge produced by fn and the updated counters in
	// one transaction. When recordingSID was already charged it returns the
	// existing charge and applied=false, leaving counters untouched.
	ApplyCharge(ctx context.Context, userID, recordingSID string, init Counters, fn func(Counters) (Counters, Charge)) (charge Charge, applied bool, err error)

	// ApplyCredit inserts the credit and adds it to the balance. A repeated
	// idempotency key returns the counters unchanged with applied=false.
	ApplyCredit(ctx context.Context, cr Credit, init Counters) (c Counters, applied bool, err error)

	ListCharges(ctx context.Context, userID string, from, to time.Time) ([]Charge, error)
}
