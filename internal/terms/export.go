package terms

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/segmentio/parquet-go"
)

// WriteBulkFile writes entries as a src/tgt term file in the format chosen by
// the extension of path. The result can be read back with ReadBulkFile.
// The file is replaced atomically.
func WriteBulkFile(path, src, tgt string, entries []Entry) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bulk-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create term file: %w", err)
	}
	defer os.Remove(tmp.Name())

	switch DetectBulkFormat(path) {
	case FormatParquet:
		err = writeParquetTable(tmp, src, tgt, entries)
	case FormatTSV:
		err = writeDelimitedTable(tmp, '\t', src, tgt, entries)
	default:
		err = writeDelimitedTable(tmp, ',', src, tgt, entries)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace term file: %w", err)
	}
	return nil
}

func writeDelimitedTable(file *os.File, comma rune, src, tgt string, entries []Entry) error {
	w := csv.NewWriter(file)
	w.Comma = comma

	if err := w.Write([]string{src, tgt}); err != nil {
		return fmt.Errorf("failed to write term file header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Source, e.Target}); err != nil {
			return fmt.Errorf("failed to write term file: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeParquetTable(file *os.File, src, tgt string, entries []Entry) error {
	if src == tgt {
		return fmt.Errorf("source and target language are both %q", src)
	}
	schema := parquet.NewSchema("terms", parquet.Group{
		src: parquet.String(),
		tgt: parquet.String(),
	})

	// Group columns are ordered by name.
	srcCol, tgtCol := 0, 1
	if tgt < src {
		srcCol, tgtCol = 1, 0
	}

	rows := make([]parquet.Row, 0, len(entries))
	for _, e := range entries {
		row := make(parquet.Row, 2)
		row[srcCol] = parquet.ValueOf(e.Source).Level(0, 0, srcCol)
		row[tgtCol] = parquet.ValueOf(e.Target).Level(0, 0, tgtCol)
		rows = append(rows, row)
	}

	w := parquet.NewWriter(file, schema)
	if _, err := w.WriteRows(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}
