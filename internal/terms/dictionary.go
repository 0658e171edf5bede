package terms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// Dictionary is the authoritative source->target term mapping. It keeps the
// Matcher in sync with its entries: a key is indexed exactly when it has an
// entry. Reads share a lock; mutations hold it exclusively across the store
// commit and the in-memory update.
type Dictionary struct {
	mu      sync.RWMutex
	entries *orderedmap.OrderedMap[string, Entry]
	matcher *Matcher
	store   Store
	logger  *zap.Logger
}

// NewDictionary creates an empty dictionary persisting mutations to store.
func NewDictionary(store Store, logger *zap.Logger) *Dictionary {
	return &Dictionary{
		entries: orderedmap.New[string, Entry](),
		matcher: NewMatcher(),
		store:   store,
		logger:  logger,
	}
}

// LoadBulk reads a bulk term file for the src->tgt pair and installs its
// entries. A missing or unreadable file leaves the dictionary unchanged; the
// error is informational and callers are expected to continue without it.
func (d *Dictionary) LoadBulk(path, src, tgt string) (int, error) {
	entries, err := ReadBulkFile(path, src, tgt)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		d.setLocked(e)
	}

	d.logger.Info("Bulk terms loaded",
		zap.String("file", path),
		zap.String("pair", src+"-"+tgt),
		zap.Int("entries", len(entries)))
	return len(entries), nil
}

// LoadPersistent overlays every entry of the store on the current mapping.
// Persistent entries win over bulk entries with the same key.
func (d *Dictionary) LoadPersistent(ctx context.Context) error {
	entries, err := d.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		d.setLocked(e)
	}

	d.logger.Info("Persistent terms loaded", zap.Int("entries", len(entries)))
	return nil
}

// Add upserts entries and returns the ones applied, deduplicated by key.
// Entries whose source normalizes to empty are skipped. The store commit
// happens first; memory and matcher are updated only if it succeeds, so a
// failed commit leaves the dictionary as it was.
func (d *Dictionary) Add(ctx context.Context, entries []Entry) ([]Entry, error) {
	batch := Batch{Upserts: dedupe(entries)}
	if batch.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Commit(ctx, batch); err != nil {
		d.logger.Error("Failed to persist terms", zap.Int("entries", len(batch.Upserts)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	for _, e := range batch.Upserts {
		d.setLocked(e)
	}

	d.logger.Info("Terms added", zap.Int("entries", len(batch.Upserts)))
	return batch.Upserts, nil
}

// Delete removes the given source terms and returns the entries that were
// present. Unknown terms are ignored.
func (d *Dictionary) Delete(ctx context.Context, sources []string) ([]Entry, error) {
	keys := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		key := Normalize(s)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Commit(ctx, Batch{Deletes: keys}); err != nil {
		d.logger.Error("Failed to delete persisted terms", zap.Int("keys", len(keys)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var removed []Entry
	for _, key := range keys {
		if e, ok := d.entries.Delete(key); ok {
			d.matcher.Remove(key)
			removed = append(removed, e)
		}
	}

	d.logger.Info("Terms deleted", zap.Int("requested", len(keys)), zap.Int("removed", len(removed)))
	return removed, nil
}

// Snapshot returns all entries in insertion order.
func (d *Dictionary) Snapshot() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Entry, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Lookup returns the target for source.
func (d *Dictionary) Lookup(source string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookupLocked(source)
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries.Len()
}

// FindAll returns the protected-term spans in text.
func (d *Dictionary) FindAll(text string) []Span {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.matcher.FindAll(text)
}

// read runs fn under the read lock with a lookup that does not re-lock.
func (d *Dictionary) read(fn func(lookup func(string) (string, bool))) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.lookupLocked)
}

func (d *Dictionary) lookupLocked(source string) (string, bool) {
	e, ok := d.entries.Get(Normalize(source))
	if !ok {
		return "", false
	}
	return e.Target, true
}

// setLocked installs e in the mapping and the matcher. Caller holds d.mu.
func (d *Dictionary) setLocked(e Entry) {
	key := e.Key()
	if key == "" {
		return
	}
	d.entries.Set(key, Entry{Source: strings.TrimSpace(e.Source), Target: e.Target})
	d.matcher.Add(key)
}

// dedupe drops entries with an empty key and keeps the last entry per key,
// at the position of its first occurrence.
func dedupe(entries []Entry) []Entry {
	unique := orderedmap.New[string, Entry]()
	for _, e := range entries {
		key := e.Key()
		if key == "" {
			continue
		}
		unique.Set(key, Entry{Source: strings.TrimSpace(e.Source), Target: e.Target})
	}

	out := make([]Entry, 0, unique.Len())
	for pair := unique.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
