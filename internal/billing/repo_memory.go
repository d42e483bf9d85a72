package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests. A single mutex stands in
// for the counters row lock.
type MemoryRepo struct {
	mu       sync.Mutex
	counters map[string]Counters
	charges  map[string]Charge // by recording sid
	credits  map[string]Credit // by user id + idempotency key
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		counters: make(map[string]Counters),
		charges:  make(map[string]Charge),
		credits:  make(map[string]Credit),
	}
}

// Seed sets a user's counters directly.
func (m *MemoryRepo) Seed(c Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c.UserID] = c
}

func (m *MemoryRepo) Counters(userID string) (Counters, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[userID]
	return c, ok
}

func (m *MemoryRepo) locked(userID string, init Counters) Counters {
	c, ok := m.counters[userID]
	if !ok {
		init.UserID = userID
		c = init
	}
	return c
}

func (m *MemoryRepo) Update(ctx context.Context, userID string, init Counters, fn func(Counters) Counters) (Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := fn(m.locked(userID, init))
	m.counters[userID] = next
	return next, nil
}

func (m *MemoryRepo) ApplyCharge(ctx context.Context, userID, recordingSID string, init Counters, fn func(Counters) (Counters, Charge)) (Charge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.charges[recordingSID]; ok {
		return existing, false, nil
	}
	next, ch := fn(m.locked(userID, init))
	m.charges[recordingSID] = ch
	m.counters[userID] = next
	return ch, true, nil
}

func (m *MemoryRepo) ApplyCredit(ctx context.Context, cr Credit, init Counters) (Counters, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.locked(cr.UserID, init)
	key := cr.UserID + "\x00" + cr.IdempotencyKey
	if _, ok := m.credits[key]; ok {
		m.counters[cr.UserID] = c
		return c, false, nil
	}
	m.credits[key] = cr
	c.Balance = c.Balance.Add(cr.Amount)
	c.UpdatedAt = cr.CreatedAt
	m.counters[cr.UserID] = c
	return c, true, nil
}

func (m *MemoryRepo) ListCharges(ctx context.Context, userID string, from, to time.Time) ([]Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Charge
	for _, ch := range m.charges {
		if ch.UserID == userID && !ch.CreatedAt.Before(from) && ch.CreatedAt.Before(to) {
			out = append(out, ch)
		}
	}
	return out, nil
}
