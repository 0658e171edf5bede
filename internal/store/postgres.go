package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

// Postgres keeps the terms of one language pair in a table named
// terms_<src>_<tgt>.
type Postgres struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

// NewPostgres connects to cfg.DatabaseURL and creates the term table if it
// does not exist yet.
func NewPostgres(cfg Config, src, tgt string, logger *zap.Logger) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s, err := NewPostgresFromDB(db, src, tgt, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Postgres term store initialized",
		zap.String("database_url", maskURL(cfg.DatabaseURL)),
		zap.String("table", s.table),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return s, nil
}

// NewPostgresFromDB wraps an open connection.
func NewPostgresFromDB(db *sqlx.DB, src, tgt string, logger *zap.Logger) (*Postgres, error) {
	s := &Postgres{
		db:     db,
		table:  "terms_" + pairName(src, tgt, "_"),
		logger: logger,
	}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return s, nil
}

// initialize creates the term table.
func (s *Postgres) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			source_key  TEXT PRIMARY KEY,
			source_term TEXT NOT NULL,
			target_term TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Load returns every stored entry, oldest update first.
func (s *Postgres) Load(ctx context.Context) ([]terms.Entry, error) {
	query := fmt.Sprintf(`
		SELECT source_term, target_term
		FROM %s
		ORDER BY updated_at, source_key`, pq.QuoteIdentifier(s.table))

	var entries []terms.Entry
	if err := s.db.SelectContext(ctx, &entries, query); err != nil {
		s.logger.Error("Failed to load terms", zap.String("table", s.table), zap.Error(err))
		return nil, fmt.Errorf("failed to load terms: %w", err)
	}
	return entries, nil
}

// Commit applies batch in one transaction.
func (s *Postgres) Commit(ctx context.Context, batch terms.Batch) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := pq.QuoteIdentifier(s.table)
	if len(batch.Upserts) > 0 {
		upsert := fmt.Sprintf(`
			INSERT INTO %s (source_key, source_term, target_term, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (source_key) DO UPDATE
			SET source_term = EXCLUDED.source_term,
			    target_term = EXCLUDED.target_term,
			    updated_at = NOW()`, table)
		for _, e := range batch.Upserts {
			if _, err := tx.ExecContext(ctx, upsert, e.Key(), e.Source, e.Target); err != nil {
				return fmt.Errorf("failed to upsert term %q: %w", e.Source, err)
			}
		}
	}

	if len(batch.Deletes) > 0 {
		del := fmt.Sprintf(`DELETE FROM %s WHERE source_key = ANY($1)`, table)
		if _, err := tx.ExecContext(ctx, del, pq.Array(batch.Deletes)); err != nil {
			return fmt.Errorf("failed to delete terms: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Term batch committed",
		zap.String("table", s.table),
		zap.Int("upserts", len(batch.Upserts)),
		zap.Int("deletes", len(batch.Deletes)))
	return nil
}

// Close closes the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

var _ terms.Store = (*Postgres)(nil)
