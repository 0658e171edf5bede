package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sammichenVV/translateserver/internal/config"
	"github.com/sammichenVV/translateserver/internal/logger"
	"github.com/sammichenVV/translateserver/internal/store"
	"github.com/sammichenVV/translateserver/internal/terms"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		envFile    = flag.String("env-file", ".env", "Environment file loaded before the configuration")
		inputFile  = flag.String("input", "", "Term file to import (CSV, TSV or Parquet)")
		exportFile = flag.String("export", "", "Write the stored terms to this file (CSV, TSV or Parquet) instead of importing")
		batchSize  = flag.Int("batch-size", 500, "Entries committed per store transaction")
		dryRun     = flag.Bool("dry-run", false, "Parse the input but don't write to the store")
		showStats  = flag.Bool("stats", false, "Show the number of stored terms and exit")
	)
	flag.Parse()

	if *inputFile == "" && *exportFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input terms.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input terms.parquet --batch-size 1000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --export backup.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	src, tgt := cfg.Translation.SourceLang, cfg.Translation.TargetLang
	log.Info("Starting term import",
		zap.String("pair", src+"-"+tgt),
		zap.String("driver", cfg.Terms.Store.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling import...")
		cancel()
	}()

	termStore, err := store.New(cfg.Terms.Store, src, tgt, log.WithComponent("store").Logger)
	if err != nil {
		log.Fatal("Failed to open term store", zap.Error(err))
	}
	defer termStore.Close()

	switch {
	case *showStats:
		err = printStats(ctx, termStore, src, tgt, cfg.Terms.Timeout)
	case *exportFile != "":
		err = exportTerms(ctx, termStore, *exportFile, src, tgt, cfg.Terms.Timeout, log)
	default:
		err = importTerms(ctx, termStore, *inputFile, src, tgt, *batchSize, *dryRun, cfg.Terms.Timeout, log)
	}
	if err != nil {
		log.Fatal("Term import failed", zap.Error(err))
	}

	log.Info("Term import completed successfully")
}

// importTerms reads path and commits its entries to s in batches
func importTerms(ctx context.Context, s terms.Store, path, src, tgt string, batchSize int, dryRun bool, timeout time.Duration, log *logger.Logger) error {
	start := time.Now()

	entries, err := terms.ReadBulkFile(path, src, tgt)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	entries = uniqueEntries(entries)

	log.Info("Term file parsed",
		zap.String("file", path),
		zap.String("format", string(terms.DetectBulkFormat(path))),
		zap.Int("entries", len(entries)))

	if dryRun {
		log.Info("Dry run, nothing written")
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	committed := 0
	for committed < len(entries) {
		end := committed + batchSize
		if end > len(entries) {
			end = len(entries)
		}

		commitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Commit(commitCtx, terms.Batch{Upserts: entries[committed:end]})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to commit entries %d-%d: %w", committed, end, err)
		}

		committed = end
		log.Info("Import progress", zap.Int("committed", committed), zap.Int("total", len(entries)))
	}

	log.Info("Terms imported",
		zap.Int("entries", committed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// exportTerms writes every stored entry to path
func exportTerms(ctx context.Context, s terms.Store, path, src, tgt string, timeout time.Duration, log *logger.Logger) error {
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := s.Load(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load terms: %w", err)
	}
	if err := terms.WriteBulkFile(path, src, tgt, entries); err != nil {
		return err
	}

	log.Info("Terms exported", zap.String("file", path), zap.Int("entries", len(entries)))
	return nil
}

// printStats displays the number of stored terms
func printStats(ctx context.Context, s terms.Store, src, tgt string, timeout time.Duration) error {
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := s.Load(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load terms: %w", err)
	}

	fmt.Printf("\n=== Term Store Statistics (%s-%s) ===\n", src, tgt)
	fmt.Printf("Stored Terms:       %d\n", len(entries))
	if len(entries) > 0 {
		longest := entries[0]
		for _, e := range entries[1:] {
			if len([]rune(e.Source)) > len([]rune(longest.Source)) {
				longest = e
			}
		}
		fmt.Printf("Longest Source:     %s\n", strings.TrimSpace(longest.Source))
	}
	return nil
}

// uniqueEntries keeps the last entry per normalized source, in first-seen
// order.
func uniqueEntries(entries []terms.Entry) []terms.Entry {
	index := make(map[string]int, len(entries))
	out := make([]terms.Entry, 0, len(entries))
	for _, e := range entries {
		key := e.Key()
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = e
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}
