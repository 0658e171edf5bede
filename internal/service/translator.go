// Package service ties term protection, the stage pipeline and change
// notification together behind the four request methods.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sammichenVV/translateserver/internal/events"
	"github.com/sammichenVV/translateserver/internal/metrics"
	"github.com/sammichenVV/translateserver/internal/pipeline"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

// Options configures a Translator.
type Options struct {
	SourceLang string
	TargetLang string
	// StoreTimeout bounds every dictionary mutation. Zero means no limit.
	StoreTimeout time.Duration
	Notifier     events.Notifier
	Metrics      *metrics.Metrics
}

// Result is the outcome of one translate call.
type Result struct {
	Translation string
	MaskedTerms int
	Collision   bool
	Demask      terms.DemaskStats
}

// Translator runs text through mask, pipeline and demask, and applies
// dictionary mutations.
type Translator struct {
	protector    *terms.Protector
	pipeline     *pipeline.Pipeline
	notifier     events.Notifier
	metrics      *metrics.Metrics
	pair         string
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewTranslator creates a translator. A nil notifier or metrics is allowed.
func NewTranslator(protector *terms.Protector, pl *pipeline.Pipeline, opts Options, logger *zap.Logger) *Translator {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Translator{
		protector:    protector,
		pipeline:     pl,
		notifier:     opts.Notifier,
		metrics:      m,
		pair:         opts.SourceLang + "-" + opts.TargetLang,
		storeTimeout: opts.StoreTimeout,
		logger:       logger,
	}
}

// Translate masks the protected terms of text, runs the pipeline on the
// masked text and restores the terms in its output.
func (t *Translator) Translate(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	defer func() { t.metrics.RecordTranslateLatency(time.Since(start)) }()
	t.metrics.Translations.Add(1)

	if strings.TrimSpace(text) == "" {
		return &Result{Translation: text}, nil
	}

	masked := t.protector.Mask(text)
	if masked.Collision {
		t.metrics.MarkerCollisions.Add(1)
	}
	t.metrics.TermsMasked.Add(int64(len(masked.Terms)))

	pipelineStart := time.Now()
	out, err := t.pipeline.Run(ctx, masked.Text)
	t.metrics.RecordPipelineLatency(time.Since(pipelineStart))
	if err != nil {
		t.metrics.ErrorsPipeline.Add(1)
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	result := &Result{
		Translation: out,
		MaskedTerms: len(masked.Terms),
		Collision:   masked.Collision,
	}
	if len(masked.Terms) == 0 {
		return result, nil
	}

	result.Translation, result.Demask = t.protector.Demask(out, masked.Terms)
	t.metrics.TermsRestored.Add(int64(result.Demask.Replaced))
	if n := result.Demask.Anomalies(); n > 0 {
		t.metrics.DemaskAnomalies.Add(int64(n))
		t.logger.Warn("Placeholders left unrestored",
			zap.Int("masked", len(masked.Terms)),
			zap.Int("replaced", result.Demask.Replaced),
			zap.Int("out_of_range", result.Demask.OutOfRange),
			zap.Int("stale", result.Demask.Stale))
	}
	return result, nil
}

// AddWords upserts source/target pairs. Pairs with a blank source are ignored
// and repeated sources keep the last target. Only applied pairs are counted
// and announced.
func (t *Translator) AddWords(ctx context.Context, words [][2]string) error {
	entries := make([]terms.Entry, 0, len(words))
	for _, w := range words {
		entries = append(entries, terms.Entry{Source: strings.TrimSpace(w[0]), Target: w[1]})
	}

	ctx, cancel := t.storeContext(ctx)
	defer cancel()

	added, err := t.protector.Add(ctx, entries)
	if err != nil {
		t.metrics.ErrorsStore.Add(1)
		return err
	}
	if len(added) == 0 {
		return nil
	}
	t.metrics.TermsAdded.Add(int64(len(added)))

	pairs := make([][2]string, 0, len(added))
	for _, e := range added {
		pairs = append(pairs, e.Pair())
	}
	t.notify(ctx, events.TermsChange{Action: events.ActionAdd, Terms: pairs})
	return nil
}

// DeleteWords removes source terms. Unknown terms are ignored.
func (t *Translator) DeleteWords(ctx context.Context, sources []string) error {
	ctx, cancel := t.storeContext(ctx)
	defer cancel()

	removed, err := t.protector.Delete(ctx, sources)
	if err != nil {
		t.metrics.ErrorsStore.Add(1)
		return err
	}
	if len(removed) == 0 {
		return nil
	}
	t.metrics.TermsDeleted.Add(int64(len(removed)))

	deleted := make([]string, 0, len(removed))
	for _, e := range removed {
		deleted = append(deleted, e.Source)
	}
	t.notify(ctx, events.TermsChange{Action: events.ActionDelete, Sources: deleted})
	return nil
}

// ShowWords returns every protected pair in insertion order.
func (t *Translator) ShowWords() [][2]string {
	snapshot := t.protector.Snapshot()
	words := make([][2]string, 0, len(snapshot))
	for _, e := range snapshot {
		words = append(words, e.Pair())
	}
	return words
}

// TermCount returns the number of protected terms.
func (t *Translator) TermCount() int {
	return t.protector.Len()
}

// Pair returns the language pair, e.g. "en-zh".
func (t *Translator) Pair() string {
	return t.pair
}

// Stages returns the pipeline stage names in order.
func (t *Translator) Stages() []string {
	return t.pipeline.Stages()
}

// Metrics returns the counters the translator records into.
func (t *Translator) Metrics() *metrics.Metrics {
	return t.metrics
}

func (t *Translator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.storeTimeout)
}

// notify reports a committed change. Delivery failures are logged only; the
// mutation has already been committed.
func (t *Translator) notify(ctx context.Context, change events.TermsChange) {
	if t.notifier == nil {
		return
	}
	change.Pair = t.pair
	change.Total = t.protector.Len()
	change.Timestamp = time.Now()

	if err := t.notifier.NotifyTermsChanged(ctx, change); err != nil {
		t.logger.Warn("Terms change notification failed",
			zap.String("action", change.Action),
			zap.Error(err))
	}
}
