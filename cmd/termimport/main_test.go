package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sammichenVV/translateserver/internal/logger"
	"github.com/sammichenVV/translateserver/internal/terms"
)

func TestImportTerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.csv")
	content := "zh,en\n填方,filling\n跳线线夹,jumper clamp\n填方,fill\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := terms.NewMemoryStore()
	err := importTerms(context.Background(), s, path, "en", "zh", 1, false, time.Second, logger.NewNop())
	if err != nil {
		t.Fatalf("importTerms failed: %v", err)
	}

	got, _ := s.Load(context.Background())
	want := []terms.Entry{
		{Source: "filling", Target: "填方"},
		{Source: "jumper clamp", Target: "跳线线夹"},
		{Source: "fill", Target: "填方"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stored = %v, want %v", got, want)
	}
}

func TestImportTermsDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.csv")
	if err := os.WriteFile(path, []byte("en,zh\nhello,你好\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := terms.NewMemoryStore()
	if err := importTerms(context.Background(), s, path, "en", "zh", 10, true, time.Second, logger.NewNop()); err != nil {
		t.Fatalf("importTerms failed: %v", err)
	}
	if got, _ := s.Load(context.Background()); len(got) != 0 {
		t.Errorf("dry run stored %v", got)
	}
}

func TestExportTerms(t *testing.T) {
	s := terms.NewMemoryStore(terms.Entry{Source: "hello", Target: "你好"})
	path := filepath.Join(t.TempDir(), "backup.parquet")

	if err := exportTerms(context.Background(), s, path, "en", "zh", time.Second, logger.NewNop()); err != nil {
		t.Fatalf("exportTerms failed: %v", err)
	}
	got, err := terms.ReadBulkFile(path, "en", "zh")
	if err != nil {
		t.Fatalf("ReadBulkFile failed: %v", err)
	}
	if len(got) != 1 || got[0].Target != "你好" {
		t.Errorf("exported = %v", got)
	}
}

func TestUniqueEntries(t *testing.T) {
	in := []terms.Entry{
		{Source: "API", Target: "接口"},
		{Source: "  ", Target: "blank"},
		{Source: "api", Target: "应用接口"},
		{Source: "SDK", Target: "工具包"},
	}
	want := []terms.Entry{
		{Source: "api", Target: "应用接口"},
		{Source: "SDK", Target: "工具包"},
	}
	if got := uniqueEntries(in); !reflect.DeepEqual(got, want) {
		t.Errorf("uniqueEntries = %v, want %v", got, want)
	}
}
