package calls

import (
	"context"
	"time"
)

// MutateFunc receives the current record (exists=false on first sight) and
// returns the record to store. Returning an error aborts without writing.
type MutateFunc func(cur Record, exists bool) (Record, error)

type Repository interface {
	// Apply runs fn with the call row locked so concurrent callbacks for the
	// same call serialise instead of overwriting each other.
	Apply(ctx context.Context, callSID string, fn MutateFunc) (Record, error)

	Get(ctx context.Context, userID, callSID string) (Record, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Record, error)
	ListRecordings(ctx context.Context, userID string, limit, offset int) ([]Record, error)
	ListBetween(ctx context.Context, userID string, from, to time.Time) ([]Record, error)
}
