package terms

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config configures the term protection layer for one language pair.
type Config struct {
	Marker     string
	DictFile   string
	SourceLang string
	TargetLang string
}

// Protector hides protected terms from the translation stages and restores
// them with their fixed targets afterwards.
type Protector struct {
	dict   *Dictionary
	codec  *Codec
	config Config
	logger *zap.Logger
}

// NewProtector creates a protector persisting dictionary mutations to store.
// The dictionary starts empty; call Init to load it.
func NewProtector(cfg Config, store Store, logger *zap.Logger) (*Protector, error) {
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	codec, err := NewCodec(cfg.Marker)
	if err != nil {
		return nil, fmt.Errorf("failed to create term codec: %w", err)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	return &Protector{
		dict:   NewDictionary(store, logger),
		codec:  codec,
		config: cfg,
		logger: logger,
	}, nil
}

// Init loads the bulk term file, then overlays the persistent entries.
// A bulk file problem is logged and skipped; a store failure is returned.
func (p *Protector) Init(ctx context.Context) error {
	if p.config.DictFile != "" {
		if _, err := p.dict.LoadBulk(p.config.DictFile, p.config.SourceLang, p.config.TargetLang); err != nil {
			p.logger.Warn("Bulk term file not loaded",
				zap.String("file", p.config.DictFile),
				zap.Error(err))
		}
	}

	if err := p.dict.LoadPersistent(ctx); err != nil {
		return fmt.Errorf("failed to load persistent terms: %w", err)
	}

	p.logger.Info("Term protection initialized",
		zap.String("marker", p.codec.Marker()),
		zap.Int("terms", p.dict.Len()))
	return nil
}

// Mask replaces the protected terms found in text with placeholders.
func (p *Protector) Mask(text string) Masked {
	if p.codec.Collides(text) {
		p.logger.Warn("Input contains the protection marker, terms left unprotected",
			zap.String("marker", p.codec.Marker()))
		return Masked{Text: text, Collision: true}
	}
	return p.codec.Mask(text, p.dict.FindAll(text))
}

// Demask restores the placeholders of text with the current targets of terms.
func (p *Protector) Demask(text string, terms []string) (string, DemaskStats) {
	var (
		out   string
		stats DemaskStats
	)
	p.dict.read(func(lookup func(string) (string, bool)) {
		out, stats = p.codec.Demask(text, terms, lookup)
	})
	return out, stats
}

// Add upserts protected terms and returns the entries applied.
func (p *Protector) Add(ctx context.Context, entries []Entry) ([]Entry, error) {
	return p.dict.Add(ctx, entries)
}

// Delete removes protected terms by source and returns the entries removed.
func (p *Protector) Delete(ctx context.Context, sources []string) ([]Entry, error) {
	return p.dict.Delete(ctx, sources)
}

// Snapshot returns every protected term in insertion order.
func (p *Protector) Snapshot() []Entry {
	return p.dict.Snapshot()
}

// Len returns the number of protected terms.
func (p *Protector) Len() int {
	return p.dict.Len()
}

// Marker returns the protection marker in use.
func (p *Protector) Marker() string {
	return p.codec.Marker()
}
