package terms

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/parquet-go"
)

// ErrPairNotFound is returned when a bulk file header names neither
// direction of the requested language pair.
var ErrPairNotFound = errors.New("language pair not found in bulk file header")

// BulkFormat is a supported bulk term file layout.
type BulkFormat string

const (
	FormatCSV     BulkFormat = "csv"
	FormatTSV     BulkFormat = "tsv"
	FormatParquet BulkFormat = "parquet"
)

// DetectBulkFormat picks the format from the file extension. Unknown
// extensions are read as CSV.
func DetectBulkFormat(path string) BulkFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab", ".txt":
		return FormatTSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// bulkTable is a two-column term table: the header names the language of
// each column and every row is one term pair.
type bulkTable struct {
	header [2]string
	rows   [][2]string
}

// ReadBulkFile reads a two-column term file and returns the entries for the
// src->tgt direction. The header row names the language of each column; a
// file written for tgt->src is read with its columns swapped. Rows with an
// empty cell are skipped.
func ReadBulkFile(path, src, tgt string) ([]Entry, error) {
	var (
		table *bulkTable
		err   error
	)
	switch DetectBulkFormat(path) {
	case FormatParquet:
		table, err = readParquetTable(path)
	case FormatTSV:
		table, err = readDelimitedTable(path, '\t')
	default:
		table, err = readDelimitedTable(path, ',')
	}
	if err != nil {
		return nil, err
	}
	return table.entries(src, tgt)
}

func (t *bulkTable) entries(src, tgt string) ([]Entry, error) {
	src, tgt = strings.ToLower(src), strings.ToLower(tgt)
	var from, to int
	switch {
	case t.header[0] == src && t.header[1] == tgt:
		from, to = 0, 1
	case t.header[0] == tgt && t.header[1] == src:
		from, to = 1, 0
	default:
		return nil, fmt.Errorf("%w: want %s-%s, header is %s-%s", ErrPairNotFound, src, tgt, t.header[0], t.header[1])
	}

	out := make([]Entry, 0, len(t.rows))
	for _, row := range t.rows {
		source, target := strings.TrimSpace(row[from]), strings.TrimSpace(row[to])
		if source == "" || target == "" {
			continue
		}
		out = append(out, Entry{Source: source, Target: target})
	}
	return out, nil
}

func readDelimitedTable(path string, comma rune) (*bulkTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open term file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read term file header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("term file header needs two columns, got %d", len(header))
	}

	table := &bulkTable{header: [2]string{headerCell(header[0]), headerCell(header[1])}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// Malformed rows are skipped; the reader resumes at the next line.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read term file: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		table.rows = append(table.rows, [2]string{record[0], record[1]})
	}
	return table, nil
}

func readParquetTable(path string) (*bulkTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open term file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	fields := reader.Schema().Fields()
	if len(fields) < 2 {
		return nil, fmt.Errorf("term file needs two columns, got %d", len(fields))
	}
	table := &bulkTable{header: [2]string{headerCell(fields[0].Name()), headerCell(fields[1].Name())}}

	rows := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			var cells [2]string
			for _, value := range row {
				col := value.Column()
				// Only string cells of the first two columns are terms.
				if col < 0 || col > 1 || value.IsNull() || value.Kind() != parquet.ByteArray {
					continue
				}
				cells[col] = string(value.ByteArray())
			}
			table.rows = append(table.rows, cells)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return table, nil
}

func headerCell(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}
