package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"calltrack/pkg/utils"

	"github.com/shopspring/decimal"
)

// NOTE: expects usage_counters (pk user_id), recording_charges (pk
// recording_sid) and balance_credits (unique user_id, idempotency_key).

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func ensureCounters(ctx context.Context, tx *sql.Tx, init Counters) error {
	const q = `
INSERT INTO usage_counters (user_id, free_seconds_remaining, last_reset_at, balance, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, init.UserID, init.FreeSecondsRemaining, init.LastResetAt, init.Balance, init.UpdatedAt)
	return err
}

func lockCounters(ctx context.Context, tx *sql.Tx, userID string) (Counters, error) {
	// Serialises every money operation for one user.
	const q = `
SELECT user_id, free_seconds_remaining, last_reset_at, balance, rate_per_minute, updated_at
FROM usage_counters
WHERE user_id = $1
FOR UPDATE
`
	var (
		c    Counters
		rate decimal.NullDecimal
	)
	if err := tx.QueryRowContext(ctx, q, userID).Scan(
		&c.UserID,
		&c.FreeSecondsRemaining,
		&c.LastResetAt,
		&c.Balance,
		&rate,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Counters{}, ErrNotFound
		}
		return Counters{}, err
	}
	if rate.Valid {
		r := rate.Decimal
		c.RatePerMinute = &r
	}
	return c, nil
}

func saveCounters(ctx context.Context, tx *sql.Tx, c Counters) error {
	const q = `
UPDATE usage_counters
SET free_seconds_remaining = $2, last_reset_at = $3, balance = $4, updated_at = $5
WHERE user_id = $1
`
	_, err := tx.ExecContext(ctx, q, c.UserID, c.FreeSecondsRemaining, c.LastResetAt, c.Balance, c.UpdatedAt)
	return err
}

func lockedCounters(ctx context.Context, tx *sql.Tx, init Counters) (Counters, error) {
	if err := ensureCounters(ctx, tx, init); err != nil {
		return Counters{}, err
	}
	return lockCounters(ctx, tx, init.UserID)
}

func (r *PostgresRepo) Update(ctx context.Context, userID string, init Counters, fn func(Counters) Counters) (Counters, error) {
	init.UserID = userID
	var out Counters
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockedCounters(ctx, tx, init)
		if err != nil {
			return err
		}
		next := fn(c)
		if err := saveCounters(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func findCharge(ctx context.Context, tx *sql.Tx, recordingSID string) (Charge, bool, error) {
	const q = `
SELECT id, user_id, call_sid, recording_sid, duration_seconds, free_seconds_used,
       billable_minutes, rate, amount, created_at
FROM recording_charges
WHERE recording_sid = $1
`
	var ch Charge
	err := tx.QueryRowContext(ctx, q, recordingSID).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.CallSID,
		&ch.RecordingSID,
		&ch.DurationSeconds,
		&ch.FreeSecondsUsed,
		&ch.BillableMinutes,
		&ch.Rate,
		&ch.Amount,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Charge{}, false, nil
		}
		return Charge{}, false, err
	}
	return ch, true, nil
}

func insertCharge(ctx context.Context, tx *sql.Tx, ch Charge) (bool, error) {
	const q = `
INSERT INTO recording_charges (
  id, user_id, call_sid, recording_sid, duration_seconds, free_seconds_used,
  billable_minutes, rate, amount, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (recording_sid) DO NOTHING
`
	res, err := tx.ExecContext(ctx, q,
		ch.ID,
		ch.UserID,
		ch.CallSID,
		ch.RecordingSID,
		ch.DurationSeconds,
		ch.FreeSecondsUsed,
		ch.BillableMinutes,
		ch.Rate,
		ch.Amount,
		ch.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ApplyCharge(ctx context.Context, userID, recordingSID string, init Counters, fn func(Counters) (Counters, Charge)) (Charge, bool, error) {
	init.UserID = userID
	var (
		out     Charge
		applied bool
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockedCounters(ctx, tx, init)
		if err != nil {
			return err
		}

		if existing, ok, err := findCharge(ctx, tx, recordingSID); err != nil {
			return err
		} else if ok {
			out = existing
			return nil
		}

		next, ch := fn(c)
		inserted, err := insertCharge(ctx, tx, ch)
		if err != nil {
			return err
		}
		if !inserted {
			// Lost a race with another delivery of the same recording.
			existing, _, err := findCharge(ctx, tx, recordingSID)
			out = existing
			return err
		}
		if err := saveCounters(ctx, tx, next); err != nil {
			return err
		}
		out, applied = ch, true
		return nil
	})
	return out, applied, err
}

func (r *PostgresRepo) ApplyCredit(ctx context.Context, cr Credit, init Counters) (Counters, bool, error) {
	init.UserID = cr.UserID
	var (
		out     Counters
		applied bool
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockedCounters(ctx, tx, init)
		if err != nil {
			return err
		}

		const q = `
INSERT INTO balance_credits (id, user_id, amount, reason, idempotency_key, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (user_id, idempotency_key) DO NOTHING
`
		res, err := tx.ExecContext(ctx, q, cr.ID, cr.UserID, cr.Amount, cr.Reason, cr.IdempotencyKey, cr.CreatedBy, cr.CreatedAt)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			out = c
			return nil
		}

		c.Balance = c.Balance.Add(cr.Amount)
		c.UpdatedAt = cr.CreatedAt
		if err := saveCounters(ctx, tx, c); err != nil {
			return err
		}
		out, applied = c, true
		return nil
	})
	return out, applied, err
}

func (r *PostgresRepo) ListCharges(ctx context.Context, userID string, from, to time.Time) ([]Charge, error) {
	const q = `
SELECT id, user_id, call_sid, recording_sid, duration_seconds, free_seconds_used,
       billable_minutes, rate, amount, created_at
FROM recording_charges
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		var ch Charge
		if err := rows.Scan(
			&ch.ID,
			&ch.UserID,
			&ch.CallSID,
			&ch.RecordingSID,
			&ch.DurationSeconds,
			&ch.FreeSecondsUsed,
			&ch.BillableMinutes,
			&ch.Rate,
			&ch.Amount,
			&ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
