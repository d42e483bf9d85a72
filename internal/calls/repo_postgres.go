package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calltrack/pkg/utils"

	"github.com/shopspring/decimal"
)

// NOTE: expects calls with a primary key on call_sid.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectColumns = `
SELECT call_sid, user_id, phone_number_id, from_number, to_number, direction, status,
       price, price_unit, started_at, ended_at, duration_seconds,
       recording_sid, recording_url, recording_duration, recording_channels, recording_status,
       created_at, updated_at
FROM calls
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (Record, error) {
	var (
		r         Record
		numberID  sql.NullString
		price     decimal.NullDecimal
		priceUnit sql.NullString
		started   sql.NullTime
		ended     sql.NullTime
		recSID    sql.NullString
		recURL    sql.NullString
		recDur    sql.NullInt64
		recChans  sql.NullInt64
		recStatus sql.NullString
	)
	if err := s.Scan(
		&r.CallSID,
		&r.UserID,
		&numberID,
		&r.From,
		&r.To,
		&r.Direction,
		&r.Status,
		&price,
		&priceUnit,
		&started,
		&ended,
		&r.DurationSeconds,
		&recSID,
		&recURL,
		&recDur,
		&recChans,
		&recStatus,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	r.NumberID = numberID.String
	if price.Valid {
		p := price.Decimal
		r.Price = &p
	}
	r.PriceUnit = priceUnit.String
	r.StartedAt = utils.TimePtr(started)
	r.EndedAt = utils.TimePtr(ended)
	if recSID.Valid {
		r.Recording = &Recording{
			SID:             recSID.String,
			URL:             recURL.String,
			DurationSeconds: int(recDur.Int64),
			Channels:        int(recChans.Int64),
			Status:          recStatus.String,
		}
	}
	return r, nil
}

// args returns the column values after call_sid in selectColumns order,
// without the timestamps.
func args(r Record) []any {
	var (
		price     decimal.NullDecimal
		recSID    sql.NullString
		recURL    sql.NullString
		recDur    sql.NullInt64
		recChans  sql.NullInt64
		recStatus sql.NullString
	)
	if r.Price != nil {
		price = decimal.NullDecimal{Decimal: *r.Price, Valid: true}
	}
	if rec := r.Recording; rec != nil {
		recSID = utils.NullString(rec.SID)
		recURL = utils.NullString(rec.URL)
		recDur = sql.NullInt64{Int64: int64(rec.DurationSeconds), Valid: true}
		recChans = sql.NullInt64{Int64: int64(rec.Channels), Valid: true}
		recStatus = utils.NullString(rec.Status)
	}
	return []any{
		r.UserID,
		utils.NullString(r.NumberID),
		r.From,
		r.To,
		r.Direction,
		r.Status,
		price,
		utils.NullString(r.PriceUnit),
		utils.NullTime(r.StartedAt),
		utils.NullTime(r.EndedAt),
		r.DurationSeconds,
		recSID,
		recURL,
		recDur,
		recChans,
		recStatus,
	}
}

func insertRecord(ctx context.Context, tx *sql.Tx, r Record) (bool, error) {
	const q = `
INSERT INTO calls (
  call_sid, user_id, phone_number_id, from_number, to_number, direction, status,
  price, price_unit, started_at, ended_at, duration_seconds,
  recording_sid, recording_url, recording_duration, recording_channels, recording_status,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
ON CONFLICT (call_sid) DO NOTHING
`
	vals := append([]any{r.CallSID}, args(r)...)
	vals = append(vals, r.CreatedAt, r.UpdatedAt)
	res, err := tx.ExecContext(ctx, q, vals...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func updateRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	const q = `
UPDATE calls SET
  user_id = $2, phone_number_id = $3, from_number = $4, to_number = $5, direction = $6, status = $7,
  price = $8, price_unit = $9, started_at = $10, ended_at = $11, duration_seconds = $12,
  recording_sid = $13, recording_url = $14, recording_duration = $15, recording_channels = $16,
  recording_status = $17, updated_at = $18
WHERE call_sid = $1
`
	vals := append([]any{r.CallSID}, args(r)...)
	vals = append(vals, r.UpdatedAt)
	_, err := tx.ExecContext(ctx, q, vals...)
	return err
}

func (p *PostgresRepo) Apply(ctx context.Context, callSID string, fn MutateFunc) (Record, error) {
	var out Record
	err := utils.WithTx(ctx, p.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Two passes: if a concurrent callback inserts the row between our
		// SELECT and INSERT, the second pass locks and updates it.
		for attempt := 0; attempt < 2; attempt++ {
			cur, err := scanRecord(tx.QueryRowContext(ctx, selectColumns+`WHERE call_sid = $1 FOR UPDATE`, callSID))
			exists := err == nil
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if !exists {
				cur = Record{CallSID: callSID}
			}

			next, err := fn(cur, exists)
			if err != nil {
				return err
			}
			next.CallSID = callSID

			if exists {
				if err := updateRecord(ctx, tx, next); err != nil {
					return err
				}
				out = next
				return nil
			}
			inserted, err := insertRecord(ctx, tx, next)
			if err != nil {
				return err
			}
			if inserted {
				out = next
				return nil
			}
		}
		return fmt.Errorf("calls: apply %s: row contended", callSID)
	})
	return out, err
}

func (p *PostgresRepo) Get(ctx context.Context, userID, callSID string) (Record, error) {
	return scanRecord(p.db.QueryRowContext(ctx, selectColumns+`WHERE user_id = $1 AND call_sid = $2`, userID, callSID))
}

func (p *PostgresRepo) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return p.query(ctx, selectColumns+`
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
}

func (p *PostgresRepo) ListRecordings(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return p.query(ctx, selectColumns+`
WHERE user_id = $1 AND recording_sid IS NOT NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
}

func (p *PostgresRepo) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]Record, error) {
	return p.query(ctx, selectColumns+`
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`, userID, from, to)
}

func (p *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
