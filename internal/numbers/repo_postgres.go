package numbers

import (
	"context"
	"database/sql"
	"errors"

	"calltrack/pkg/utils"
)

// NOTE: expects phone_numbers with a partial unique index on number
// WHERE released_at IS NULL.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectColumns = `
SELECT id, user_id, number, provider_sid, label, active, capabilities, monthly_cost,
       released_at, created_at, updated_at
FROM phone_numbers
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNumber(s rowScanner) (OwnedNumber, error) {
	var (
		n        OwnedNumber
		caps     []byte
		released sql.NullTime
	)
	if err := s.Scan(
		&n.ID,
		&n.UserID,
		&n.Number,
		&n.ProviderSID,
		&n.Label,
		&n.Active,
		&caps,
		&n.MonthlyCost,
		&released,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OwnedNumber{}, ErrNotFound
		}
		return OwnedNumber{}, err
	}
	n.Capability = utils.DecodeJSON(caps, DefaultCapabilities)
	n.ReleasedAt = utils.TimePtr(released)
	return n, nil
}

func (r *PostgresRepo) Create(ctx context.Context, n OwnedNumber) error {
	const q = `
INSERT INTO phone_numbers (
  id, user_id, number, provider_sid, label, active, capabilities, monthly_cost, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID,
		n.UserID,
		n.Number,
		n.ProviderSID,
		n.Label,
		n.Active,
		utils.EncodeJSON(n.Capability),
		n.MonthlyCost,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, userID, id string) (OwnedNumber, error) {
	q := selectColumns + `WHERE user_id = $1 AND id = $2 AND released_at IS NULL`
	return scanNumber(r.db.QueryRowContext(ctx, q, userID, id))
}

func (r *PostgresRepo) List(ctx context.Context, userID string) ([]OwnedNumber, error) {
	q := selectColumns + `WHERE user_id = $1 AND released_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnedNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, n OwnedNumber) error {
	const q = `
UPDATE phone_numbers
SET label = $3, active = $4, capabilities = $5, released_at = $6, updated_at = $7
WHERE user_id = $1 AND id = $2 AND released_at IS NULL
`
	res, err := r.db.ExecContext(ctx, q,
		n.UserID,
		n.ID,
		n.Label,
		n.Active,
		utils.EncodeJSON(n.Capability),
		utils.NullTime(n.ReleasedAt),
		n.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetByNumber(ctx context.Context, number string) (OwnedNumber, error) {
	q := selectColumns + `WHERE number = $1 AND released_at IS NULL`
	return scanNumber(r.db.QueryRowContext(ctx, q, number))
}
