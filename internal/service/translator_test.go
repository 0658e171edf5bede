package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/sammichenVV/translateserver/internal/events"
	"github.com/sammichenVV/translateserver/internal/metrics"
	"github.com/sammichenVV/translateserver/internal/pipeline"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

// funcBackend translates every text with fn.
type funcBackend func(string) (string, error)

func (funcBackend) Name() string { return "func" }

func (f funcBackend) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		s, err := f(text)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []events.TermsChange
	err     error
}

func (n *recordingNotifier) NotifyTermsChanged(_ context.Context, c events.TermsChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return n.err
}

func newTestTranslator(t *testing.T, store terms.Store, backend pipeline.Backend, notifier events.Notifier) *Translator {
	t.Helper()
	logger := zap.NewNop()

	protector, err := terms.NewProtector(terms.Config{SourceLang: "en", TargetLang: "zh"}, store, logger)
	if err != nil {
		t.Fatalf("NewProtector failed: %v", err)
	}
	if err := protector.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	pl, err := pipeline.DefaultRegistry().Build([]string{"translate"}, pipeline.Settings{
		SourceLang: "en",
		TargetLang: "zh",
		Backend:    backend,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return NewTranslator(protector, pl, Options{
		SourceLang: "en",
		TargetLang: "zh",
		Notifier:   notifier,
		Metrics:    metrics.New(),
	}, logger)
}

func identity(s string) (string, error) { return s, nil }

func TestTranslateProtectsTerms(t *testing.T) {
	store := terms.NewMemoryStore(
		terms.Entry{Source: "Hello world", Target: "你好世界"},
		terms.Entry{Source: "I'm", Target: "我是"},
	)
	var seen []string
	backend := funcBackend(func(s string) (string, error) {
		seen = append(seen, s)
		return s, nil
	})
	tr := newTestTranslator(t, store, backend, nil)

	res, err := tr.Translate(context.Background(), "Hello world! I'm fine.")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "¶0! ¶1 fine." {
		t.Errorf("backend saw %q, want masked text", seen)
	}
	if res.Translation != "你好世界! 我是 fine." {
		t.Errorf("Translation = %q", res.Translation)
	}
	if res.MaskedTerms != 2 || res.Demask.Replaced != 2 || res.Demask.Anomalies() != 0 {
		t.Errorf("Result = %+v", res)
	}

	s := tr.Metrics().Snapshot()
	if s.Terms.Masked != 2 || s.Terms.Restored != 2 || s.Requests.Translations != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestTranslateWithoutTerms(t *testing.T) {
	backend := funcBackend(func(s string) (string, error) { return strings.ToUpper(s), nil })
	tr := newTestTranslator(t, nil, backend, nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "good morning", "GOOD MORNING"},
		{"empty", "", ""},
		{"blank", "   ", "   "},
		{"newlines", "\n\t\n", "\n\t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Translate(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Translate failed: %v", err)
			}
			if res.Translation != tt.want || res.MaskedTerms != 0 {
				t.Errorf("Translate(%q) = %+v, want %q", tt.input, res, tt.want)
			}
		})
	}
}

func TestTranslateAnomalies(t *testing.T) {
	store := terms.NewMemoryStore(terms.Entry{Source: "API", Target: "接口"})
	backend := funcBackend(func(s string) (string, error) { return s + " ¶7", nil })
	tr := newTestTranslator(t, store, backend, nil)

	res, err := tr.Translate(context.Background(), "call the API")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if res.Translation != "call the 接口 ¶7" {
		t.Errorf("Translation = %q", res.Translation)
	}
	if res.Demask.OutOfRange != 1 {
		t.Errorf("Demask = %+v, want one out-of-range placeholder", res.Demask)
	}
	if got := tr.Metrics().Snapshot().Terms.Anomalies; got != 1 {
		t.Errorf("anomalies metric = %d, want 1", got)
	}
}

func TestTranslateMarkerCollision(t *testing.T) {
	store := terms.NewMemoryStore(terms.Entry{Source: "API", Target: "接口"})
	tr := newTestTranslator(t, store, funcBackend(identity), nil)

	res, err := tr.Translate(context.Background(), "the API ¶0")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !res.Collision || res.Translation != "the API ¶0" {
		t.Errorf("Result = %+v, want unprotected passthrough", res)
	}
	if got := tr.Metrics().Snapshot().Terms.Collisions; got != 1 {
		t.Errorf("collisions metric = %d, want 1", got)
	}
}

func TestTranslateBackendError(t *testing.T) {
	failure := errors.New("backend down")
	tr := newTestTranslator(t, nil, funcBackend(func(string) (string, error) { return "", failure }), nil)

	_, err := tr.Translate(context.Background(), "hello")
	if !errors.Is(err, failure) {
		t.Errorf("Translate error = %v, want wrapped backend error", err)
	}
	if got := tr.Metrics().Snapshot().Errors.Pipeline; got != 1 {
		t.Errorf("pipeline errors = %d, want 1", got)
	}
}

func TestWordLifecycle(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("queue unreachable")}
	tr := newTestTranslator(t, nil, funcBackend(identity), notifier)
	ctx := context.Background()

	words := [][2]string{{"kubernetes", "k8s"}, {"  ", "skipped"}, {"Kubernetes", "K8s集群"}}
	if err := tr.AddWords(ctx, words); err != nil {
		t.Fatalf("AddWords failed: %v", err)
	}
	if got := tr.ShowWords(); !reflect.DeepEqual(got, [][2]string{{"Kubernetes", "K8s集群"}}) {
		t.Errorf("ShowWords() = %v", got)
	}

	res, err := tr.Translate(ctx, "deploy to kubernetes")
	if err != nil || res.Translation != "deploy to K8s集群" {
		t.Errorf("Translate = %+v, %v", res, err)
	}

	if err := tr.DeleteWords(ctx, []string{"KUBERNETES", "never added"}); err != nil {
		t.Fatalf("DeleteWords failed: %v", err)
	}
	if got := tr.ShowWords(); len(got) != 0 {
		t.Errorf("ShowWords() after delete = %v", got)
	}
	res, _ = tr.Translate(ctx, "deploy to kubernetes")
	if res.MaskedTerms != 0 || res.Translation != "deploy to kubernetes" {
		t.Errorf("deleted term still masked: %+v", res)
	}

	// Nothing applied, nothing announced.
	if err := tr.DeleteWords(ctx, []string{"kubernetes"}); err != nil {
		t.Fatalf("DeleteWords failed: %v", err)
	}
	if err := tr.AddWords(ctx, [][2]string{{" ", "blank"}}); err != nil {
		t.Fatalf("AddWords failed: %v", err)
	}

	if len(notifier.changes) != 2 {
		t.Fatalf("notifier received %d changes, want 2", len(notifier.changes))
	}
	add, del := notifier.changes[0], notifier.changes[1]
	if add.Action != events.ActionAdd || add.Pair != "en-zh" || add.Total != 1 ||
		!reflect.DeepEqual(add.Terms, [][2]string{{"Kubernetes", "K8s集群"}}) {
		t.Errorf("add change = %+v", add)
	}
	if del.Action != events.ActionDelete || del.Total != 0 || !reflect.DeepEqual(del.Sources, []string{"Kubernetes"}) {
		t.Errorf("delete change = %+v", del)
	}

	s := tr.Metrics().Snapshot().Terms
	if s.Added != 1 || s.Deleted != 1 {
		t.Errorf("terms added/deleted = %d/%d, want 1/1", s.Added, s.Deleted)
	}
}

func TestAddWordsStoreFailure(t *testing.T) {
	store := terms.NewMemoryStore()
	notifier := &recordingNotifier{}
	tr := newTestTranslator(t, store, funcBackend(identity), notifier)

	store.FailCommit = errors.New("connection refused")
	err := tr.AddWords(context.Background(), [][2]string{{"hello", "你好"}})
	if !errors.Is(err, terms.ErrStoreUnavailable) {
		t.Fatalf("AddWords error = %v, want ErrStoreUnavailable", err)
	}
	if len(tr.ShowWords()) != 0 || len(notifier.changes) != 0 {
		t.Error("failed commit changed the dictionary or notified")
	}
	if got := tr.Metrics().Snapshot().Errors.Store; got != 1 {
		t.Errorf("store errors = %d, want 1", got)
	}
}
