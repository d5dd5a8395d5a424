package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultSlotTable = "slot_store"

// PostgresStoreConfig captures configuration required to initialize a Postgres-backed slot store.
type PostgresStoreConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresSlotStore persists slots as rows of a single PostgreSQL table.
type PostgresSlotStore struct {
	db  *sql.DB
	cfg PostgresStoreConfig
}

// NewPostgresSlotStore establishes a connection to PostgreSQL.
func NewPostgresSlotStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresSlotStore, error) {
	trimmedDSN := strings.TrimSpace(cfg.DSN)
	if trimmedDSN == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	cfg.DSN = trimmedDSN
	if cfg.Table == "" {
		cfg.Table = defaultSlotTable
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}
	return &PostgresSlotStore{db: db, cfg: cfg}, nil
}

// Close releases the underlying database connection.
func (s *PostgresSlotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the slot table (and schema when provided).
func (s *PostgresSlotStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store: not initialized")
	}
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.fullTableName(s.cfg.Table))); err != nil {
		return fmt.Errorf("postgres store: create slot table: %w", err)
	}
	return nil
}

// Get implements SlotStore.
func (s *PostgresSlotStore) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf("SELECT content FROM %s WHERE id = $1", s.fullTableName(s.cfg.Table))
	var content string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("postgres store: read slot %s: %w", key, err)
	}
	return content, nil
}

// Set implements SlotStore.
func (s *PostgresSlotStore) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
	`, s.fullTableName(s.cfg.Table))
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("postgres store: upsert slot %s: %w", key, err)
	}
	return nil
}

func (s *PostgresSlotStore) fullTableName(name string) string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
