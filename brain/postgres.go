package brain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DefaultKVKey is the kv row holding the brain document.
const DefaultKVKey = "markov_brain"

// PostgresStore keeps the brain document in the kv table (see db.Migrate).
type PostgresStore struct {
	db  *sql.DB
	key string
}

// NewPostgresStore returns a store writing to the kv row key, or DefaultKVKey when empty.
func NewPostgresStore(db *sql.DB, key string) *PostgresStore {
	if key == "" {
		key = DefaultKVKey
	}
	return &PostgresStore{db: db, key: key}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Load(ctx context.Context) (map[string][]string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query brain row: %w", err)
	}
	return decode([]byte(value))
}

func (s *PostgresStore) Save(ctx context.Context, transitions map[string][]string) error {
	data, err := encode(transitions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv(key, value, updated_at) VALUES($1, $2, NOW())
		 ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		s.key, string(data))
	if err != nil {
		return fmt.Errorf("upsert brain row: %w", err)
	}
	return nil
}
