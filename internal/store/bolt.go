package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sammichenVV/translateserver/internal/terms"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DefaultBoltPath is used when no database file is configured.
const DefaultBoltPath = "data/terms.db"

// Bolt keeps the terms of one language pair in a bbolt bucket keyed by
// normalized source.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
	logger *zap.Logger
}

// NewBolt opens (or creates) the database file at path.
func NewBolt(path, src, tgt string, logger *zap.Logger) (*Bolt, error) {
	if path == "" {
		path = DefaultBoltPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create term database directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open term database: %w", err)
	}

	s := &Bolt{
		db:     db,
		bucket: []byte("terms:" + pairName(src, tgt, "-")),
		logger: logger,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create term bucket: %w", err)
	}

	logger.Info("Bolt term store initialized",
		zap.String("path", path),
		zap.String("bucket", string(s.bucket)))
	return s, nil
}

// Load returns every stored entry ordered by key.
func (s *Bolt) Load(ctx context.Context) ([]terms.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []terms.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e terms.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				s.logger.Warn("Skipping corrupt term record", zap.ByteString("key", k), zap.Error(err))
				return nil
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read terms: %w", err)
	}
	return out, nil
}

// Commit applies batch in one read-write transaction.
func (s *Bolt) Commit(ctx context.Context, batch terms.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		for _, e := range batch.Upserts {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal term: %w", err)
			}
			if err := b.Put([]byte(e.Key()), data); err != nil {
				return err
			}
		}
		for _, key := range batch.Deletes {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit terms: %w", err)
	}

	s.logger.Debug("Term batch committed",
		zap.Int("upserts", len(batch.Upserts)),
		zap.Int("deletes", len(batch.Deletes)))
	return nil
}

// Close closes the database file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

var _ terms.Store = (*Bolt)(nil)
