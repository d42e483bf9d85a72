package whisper

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

type Repository interface {
	Get(ctx context.Context, userID, numberID string) (Config, error)
	GetByNumberID(ctx context.Context, numberID string) (Config, error)
	// Upsert replaces the config for (user, number), keeping its id.
	Upsert(ctx context.Context, c Config) (Config, error)
	Delete(ctx context.Context, userID, numberID string) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const configColumns = `id, user_id, phone_number_id, enabled, mode, text, voice, language,
       audio_key, audio_url, audio_data, audio_mime, audio_size, created_at, updated_at`

func scanConfig(row *sql.Row) (Config, error) {
	var (
		c    Config
		data []byte
		mime sql.NullString
		size sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.NumberID,
		&c.Enabled,
		&c.Mode,
		&c.Text,
		&c.Voice,
		&c.Language,
		&c.AudioKey,
		&c.AudioURL,
		&data,
		&mime,
		&size,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, ErrNotFound
		}
		return Config{}, err
	}
	if len(data) > 0 {
		c.Audio = &Audio{Data: data, MIME: mime.String, Size: int(size.Int64)}
	}
	return c, nil
}

func (p *PostgresRepo) Get(ctx context.Context, userID, numberID string) (Config, error) {
	q := `SELECT ` + configColumns + ` FROM whisper_configs WHERE user_id = $1 AND phone_number_id = $2`
	return scanConfig(p.db.QueryRowContext(ctx, q, userID, numberID))
}

func (p *PostgresRepo) GetByNumberID(ctx context.Context, numberID string) (Config, error) {
	q := `SELECT ` + configColumns + ` FROM whisper_configs WHERE phone_number_id = $1`
	return scanConfig(p.db.QueryRowContext(ctx, q, numberID))
}

func (p *PostgresRepo) Upsert(ctx context.Context, c Config) (Config, error) {
	var (
		data []byte
		mime sql.NullString
		size sql.NullInt64
	)
	if c.Audio != nil {
		data = c.Audio.Data
		mime = sql.NullString{String: c.Audio.MIME, Valid: true}
		size = sql.NullInt64{Int64: int64(c.Audio.Size), Valid: true}
	}

	q := `
INSERT INTO whisper_configs (
  id, user_id, phone_number_id, enabled, mode, text, voice, language,
  audio_key, audio_url, audio_data, audio_mime, audio_size, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (user_id, phone_number_id)
DO UPDATE SET enabled = EXCLUDED.enabled,
              mode = EXCLUDED.mode,
              text = EXCLUDED.text,
              voice = EXCLUDED.voice,
              language = EXCLUDED.language,
              audio_key = EXCLUDED.audio_key,
              audio_url = EXCLUDED.audio_url,
              audio_data = EXCLUDED.audio_data,
              audio_mime = EXCLUDED.audio_mime,
              audio_size = EXCLUDED.audio_size,
              updated_at = EXCLUDED.updated_at
RETURNING ` + configColumns
	return scanConfig(p.db.QueryRowContext(ctx, q,
		c.ID,
		c.UserID,
		c.NumberID,
		c.Enabled,
		c.Mode,
		c.Text,
		c.Voice,
		c.Language,
		c.AudioKey,
		c.AudioURL,
		data,
		mime,
		size,
		c.CreatedAt,
		c.UpdatedAt,
	))
}

func (p *PostgresRepo) Delete(ctx context.Context, userID, numberID string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM whisper_configs WHERE user_id = $1 AND phone_number_id = $2`, userID, numberID)
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
	mu      sync.Mutex
	configs map[string]Config // by number id
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{configs: make(map[string]Config)} }

func (m *MemoryRepo) Get(ctx context.Context, userID, numberID string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[numberID]
	if !ok || c.UserID != userID {
		return Config{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryRepo) GetByNumberID(ctx context.Context, numberID string) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[numberID]
	if !ok {
		return Config{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryRepo) Upsert(ctx context.Context, c Config) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.configs[c.NumberID]; ok && existing.UserID == c.UserID {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	m.configs[c.NumberID] = c
	return c, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, userID, numberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[numberID]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.configs, numberID)
	return nil
}
