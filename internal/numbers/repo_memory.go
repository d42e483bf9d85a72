package numbers

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]OwnedNumber
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]OwnedNumber)}
}

func (r *MemoryRepo) Create(ctx context.Context, n OwnedNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Number == n.Number && existing.ReleasedAt == nil {
			return ErrConflict
		}
	}
	r.rows[n.ID] = n
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (OwnedNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.UserID != userID || n.ReleasedAt != nil {
		return OwnedNumber{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) List(ctx context.Context, userID string) ([]OwnedNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OwnedNumber
	for _, n := range r.rows {
		if n.UserID == userID && n.ReleasedAt == nil {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, n OwnedNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[n.ID]
	if !ok || existing.UserID != n.UserID || existing.ReleasedAt != nil {
		return ErrNotFound
	}
	r.rows[n.ID] = n
	return nil
}

func (r *MemoryRepo) GetByNumber(ctx context.Context, number string) (OwnedNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.Number == number && n.ReleasedAt == nil {
			return n, nil
		}
	}
	return OwnedNumber{}, ErrNotFound
}
