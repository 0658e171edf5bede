package terms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestDictionaryMutations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	dict := NewDictionary(store, zap.NewNop())

	want := []Entry{{Source: "Hello World", Target: "你好世界"}, {Source: "I'm", Target: "我是"}}
	added, err := dict.Add(ctx, want)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !reflect.DeepEqual(added, want) {
		t.Errorf("Add() applied %v, want %v", added, want)
	}

	if got := dict.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if target, ok := dict.Lookup("hello world"); !ok || target != "你好世界" {
		t.Errorf("Lookup(hello world) = %q, %v", target, ok)
	}

	persisted, _ := store.Load(ctx)
	if !reflect.DeepEqual(persisted, want) {
		t.Errorf("persisted = %v, want %v", persisted, want)
	}

	removed, err := dict.Delete(ctx, []string{"HELLO WORLD", "never added"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !reflect.DeepEqual(removed, []Entry{{Source: "Hello World", Target: "你好世界"}}) {
		t.Errorf("Delete() removed %v, want only the known term", removed)
	}
	if got := dict.Snapshot(); !reflect.DeepEqual(got, []Entry{{Source: "I'm", Target: "我是"}}) {
		t.Errorf("Snapshot() after delete = %v", got)
	}
	if spans := dict.FindAll("Hello World, I'm here"); !reflect.DeepEqual(spans, []Span{{Start: 13, End: 16}}) {
		t.Errorf("FindAll() after delete = %v", spans)
	}
	if persisted, _ := store.Load(ctx); len(persisted) != 1 {
		t.Errorf("store keeps %d entries, want 1", len(persisted))
	}
}

func TestDictionaryAddOverwrites(t *testing.T) {
	ctx := context.Background()
	dict := NewDictionary(NewMemoryStore(), zap.NewNop())

	added, err := dict.Add(ctx, []Entry{
		{Source: "GPU", Target: "图形处理器"},
		{Source: " ", Target: "ignored"},
		{Source: "gpu", Target: "GPU"},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !reflect.DeepEqual(added, []Entry{{Source: "gpu", Target: "GPU"}}) {
		t.Errorf("Add() applied %v, want one merged entry", added)
	}
	if dict.Len() != 1 {
		t.Errorf("Len() = %d, want 1", dict.Len())
	}
	if target, _ := dict.Lookup("Gpu"); target != "GPU" {
		t.Errorf("Lookup(Gpu) = %q, want last write", target)
	}
	if added, err := dict.Add(ctx, nil); err != nil || len(added) != 0 {
		t.Errorf("Add(nil) = %v, %v", added, err)
	}
}

func TestDictionaryStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	dict := NewDictionary(store, zap.NewNop())
	if _, err := dict.Add(ctx, []Entry{{Source: "kept", Target: "保留"}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	store.FailCommit = errors.New("disk full")

	_, err := dict.Add(ctx, []Entry{{Source: "lost", Target: "丢失"}})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Add error = %v, want ErrStoreUnavailable", err)
	}
	if _, ok := dict.Lookup("lost"); ok {
		t.Error("failed Add reached the mapping")
	}
	if spans := dict.FindAll("lost"); len(spans) != 0 {
		t.Error("failed Add reached the matcher")
	}

	_, err = dict.Delete(ctx, []string{"kept"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Delete error = %v, want ErrStoreUnavailable", err)
	}
	if _, ok := dict.Lookup("kept"); !ok {
		t.Error("failed Delete removed the entry")
	}
	if spans := dict.FindAll("kept"); len(spans) != 1 {
		t.Error("failed Delete removed the term from the matcher")
	}
}

func TestDictionaryPersistentOverridesBulk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.csv")
	content := "en,zh\nhello,你好\nworld,世界\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write term file: %v", err)
	}

	dict := NewDictionary(NewMemoryStore(Entry{Source: "Hello", Target: "您好"}), zap.NewNop())
	n, err := dict.LoadBulk(path, "en", "zh")
	if err != nil {
		t.Fatalf("LoadBulk failed: %v", err)
	}
	if n != 2 {
		t.Errorf("LoadBulk loaded %d entries, want 2", n)
	}
	if err := dict.LoadPersistent(context.Background()); err != nil {
		t.Fatalf("LoadPersistent failed: %v", err)
	}

	if target, _ := dict.Lookup("hello"); target != "您好" {
		t.Errorf("Lookup(hello) = %q, want persistent target", target)
	}
	if target, _ := dict.Lookup("world"); target != "世界" {
		t.Errorf("Lookup(world) = %q, want bulk target", target)
	}
	if dict.Len() != 2 {
		t.Errorf("Len() = %d, want 2", dict.Len())
	}
}

func TestDictionaryBulkFileMissing(t *testing.T) {
	dict := NewDictionary(NewMemoryStore(), zap.NewNop())
	n, err := dict.LoadBulk(filepath.Join(t.TempDir(), "absent.csv"), "en", "zh")
	if err == nil {
		t.Error("LoadBulk of a missing file succeeded")
	}
	if n != 0 || dict.Len() != 0 {
		t.Error("missing bulk file changed the dictionary")
	}
}
