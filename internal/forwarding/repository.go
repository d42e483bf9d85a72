package forwarding

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

type Repository interface {
	Get(ctx context.Context, userID, numberID string) (Rule, error)
	GetByNumberID(ctx context.Context, numberID string) (Rule, error)
	// Upsert replaces the rule for (user, number), keeping its id.
	Upsert(ctx context.Context, r Rule) (Rule, error)
	Delete(ctx context.Context, userID, numberID string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectRule = `
SELECT id, user_id, phone_number_id, forward_to, enabled, type, ring_timeout_seconds, created_at, updated_at
FROM forwarding_rules
`

func scanRule(row *sql.Row) (Rule, error) {
	var r Rule
	if err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.NumberID,
		&r.ForwardTo,
		&r.Enabled,
		&r.Type,
		&r.RingTimeoutSeconds,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	return r, nil
}

func (p *PostgresRepo) Get(ctx context.Context, userID, numberID string) (Rule, error) {
	return scanRule(p.db.QueryRowContext(ctx, selectRule+`WHERE user_id = $1 AND phone_number_id = $2`, userID, numberID))
}

func (p *PostgresRepo) GetByNumberID(ctx context.Context, numberID string) (Rule, error) {
	return scanRule(p.db.QueryRowContext(ctx, selectRule+`WHERE phone_number_id = $1`, numberID))
}

func (p *PostgresRepo) Upsert(ctx context.Context, r Rule) (Rule, error) {
	const q = `
INSERT INTO forwarding_rules (
  id, user_id, phone_number_id, forward_to, enabled, type, ring_timeout_seconds, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (user_id, phone_number_id)
DO UPDATE SET forward_to = EXCLUDED.forward_to,
              enabled = EXCLUDED.enabled,
              type = EXCLUDED.type,
              ring_timeout_seconds = EXCLUDED.ring_timeout_seconds,
              updated_at = EXCLUDED.updated_at
RETURNING id, user_id, phone_number_id, forward_to, enabled, type, ring_timeout_seconds, created_at, updated_at
`
	return scanRule(p.db.QueryRowContext(ctx, q,
		r.ID,
		r.UserID,
		r.NumberID,
		r.ForwardTo,
		r.Enabled,
		r.Type,
		r.RingTimeoutSeconds,
		r.CreatedAt,
		r.UpdatedAt,
	))
}

func (p *PostgresRepo) Delete(ctx context.Context, userID, numberID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM forwarding_rules WHERE user_id = $1 AND phone_number_id = $2`, userID, numberID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	rules map[string]Rule // by number id
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rules: make(map[string]Rule)} }

func (m *MemoryRepo) Get(ctx context.Context, userID, numberID string) (Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[numberID]
	if !ok || r.UserID != userID {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) GetByNumberID(ctx context.Context, numberID string) (Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[numberID]
	if !ok {
		return Rule{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) Upsert(ctx context.Context, r Rule) (Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rules[r.NumberID]; ok && existing.UserID == r.UserID {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	}
	m.rules[r.NumberID] = r
	return r, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, userID, numberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[numberID]
	if !ok || r.UserID != userID {
		return ErrNotFound
	}
	delete(m.rules, numberID)
	return nil
}
