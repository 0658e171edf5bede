package terms

import (
	"context"
	"errors"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrStoreUnavailable wraps every failure of the persistent term store.
var ErrStoreUnavailable = errors.New("term store unavailable")

// Entry is one protected term: a source phrase and its fixed translation.
type Entry struct {
	Source string `json:"source" db:"source_term"`
	Target string `json:"target" db:"target_term"`
}

// Key returns the normalized matching key of the entry.
func (e Entry) Key() string {
	return Normalize(e.Source)
}

// Pair returns the entry as a [source, target] pair, the wire format of
// add_words and show_words.
func (e Entry) Pair() [2]string {
	return [2]string{e.Source, e.Target}
}

// Batch is a set of mutations a Store applies atomically. Deletes are
// normalized keys.
type Batch struct {
	Upserts []Entry
	Deletes []string
}

// Empty reports whether the batch carries no mutation.
func (b Batch) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletes) == 0
}

// Store persists the mutable part of the term dictionary for one language
// pair. Implementations live in internal/store.
type Store interface {
	// Load returns every persisted entry.
	Load(ctx context.Context) ([]Entry, error)
	// Commit applies all upserts and deletes of batch or none of them.
	Commit(ctx context.Context, batch Batch) error
	// Close releases the underlying connection or file handle.
	Close() error
}

// MemoryStore is a Store that keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, Entry]
	// FailCommit, when set, is returned by Commit without applying the batch.
	FailCommit error
}

// NewMemoryStore creates a MemoryStore seeded with entries.
func NewMemoryStore(entries ...Entry) *MemoryStore {
	s := &MemoryStore{entries: orderedmap.New[string, Entry]()}
	for _, e := range entries {
		s.entries.Set(e.Key(), e)
	}
	return s
}

// Load returns the stored entries in insertion order.
func (s *MemoryStore) Load(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out, nil
}

// Commit applies batch.
func (s *MemoryStore) Commit(ctx context.Context, batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommit != nil {
		return s.FailCommit
	}
	for _, e := range batch.Upserts {
		s.entries.Set(e.Key(), e)
	}
	for _, key := range batch.Deletes {
		s.entries.Delete(key)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
