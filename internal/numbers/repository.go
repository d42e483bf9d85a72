package numbers

import "context"

// Repository persists owned numbers. Released rows are never returned.
type Repository interface {
	Create(ctx context.Context, n OwnedNumber) error
	Get(ctx context.Context, userID, id string) (OwnedNumber, error)
	List(ctx context.Context, userID string) ([]OwnedNumber, error)
	Update(ctx context.Context, n OwnedNumber) error
	// GetByNumber ignores ownership; it backs inbound routing.
	GetByNumber(ctx context.Context, number string) (OwnedNumber, error)
}
