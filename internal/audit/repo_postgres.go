package audit

import (
	"context"
	"database/sql"

	"calltrack/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, user_id, type, actor_user_id, actor_role, target_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.TargetID,
		e.Message,
		utils.EncodeJSON(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	const q = `
SELECT id, user_id, type, actor_user_id, actor_role, target_id, message, metadata, created_at
FROM audit_events
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e    Event
			meta []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Type,
			&e.ActorUserID,
			&e.ActorRole,
			&e.TargetID,
			&e.Message,
			&meta,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Metadata = utils.DecodeJSON[map[string]any](meta, nil)
		out = append(out, e)
	}
	return out, rows.Err()
}
