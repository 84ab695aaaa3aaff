package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/config"
)

// ErrorColumns is the header of the diagnostic records file.
var ErrorColumns = []string{"sku", "error_type"}

// ReadInventory reads inventory rows from a CSV file. Headers are mapped to
// row keys through columns; headers without a mapping are kept verbatim in
// Row.Extra.
func ReadInventory(path string, columns []config.Column) ([]*checker.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInventory, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory header: %w", err)
	}

	byHeader := headerKeys(columns)
	keys := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		key, ok := byHeader[h]
		if !ok {
			key = h
		}
		keys[i] = key
		seen[key] = true
	}
	for _, required := range []string{checker.KeySKU, checker.KeySupplierLink} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: %s in %s", ErrMissingHeader, required, path)
		}
	}

	var rows []*checker.Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read inventory: %w", err)
		}
		row := &checker.Row{}
		for i, value := range record {
			if i >= len(keys) {
				break
			}
			row.Set(keys[i], value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerKeys(columns []config.Column) map[string]string {
	m := make(map[string]string, len(columns))
	for _, c := range columns {
		m[c.Header] = c.Key
	}
	return m
}

// CSVFile appends records to a CSV file. The header line already in the
// file decides the column order; a missing file is created with the header
// given to NewCSVFile.
type CSVFile struct {
	mu     sync.Mutex
	path   string
	header []string
}

// NewCSVFile returns a CSVFile for path. Nothing is written until Append.
func NewCSVFile(path string, header []string) *CSVFile {
	return &CSVFile{path: path, header: header}
}

// Path returns the file path
func (f *CSVFile) Path() string {
	return f.path
}

// Append writes n records. value returns the cell of record i for a column.
func (f *CSVFile) Append(n int, value func(i int, column string) string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	header, err := f.ensureHeader()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	record := make([]string, len(header))
	for i := 0; i < n; i++ {
		for j, col := range header {
			record[j] = value(i, col)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", f.path, err)
	}
	return nil
}

// ensureHeader returns the header of the file, creating the file first if
// it does not exist.
func (f *CSVFile) ensureHeader() ([]string, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f.header, f.create()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer func() { _ = file.Close() }()

	header, err := csv.NewReader(file).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s does not contain any headers", f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", f.path, err)
	}
	return header, nil
}

func (f *CSVFile) create() error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", f.path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(f.header); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header of %s: %w", f.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write header of %s: %w", f.path, err)
	}
	return file.Close()
}

// CSVSink writes processed rows to the cache file and diagnostic records to
// the errors file.
type CSVSink struct {
	rows    *CSVFile
	errors  *CSVFile
	columns map[string]string
}

var _ checker.Sink = (*CSVSink)(nil)

// NewCSVSink returns a sink writing rows with the given column layout.
func NewCSVSink(cachePath, errorsPath string, columns []config.Column) *CSVSink {
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Header
	}
	return &CSVSink{
		rows:    NewCSVFile(cachePath, header),
		errors:  NewCSVFile(errorsPath, ErrorColumns),
		columns: headerKeys(columns),
	}
}

// SaveRows appends rows to the cache file.
func (s *CSVSink) SaveRows(rows []*checker.Row) error {
	return s.rows.Append(len(rows), func(i int, column string) string {
		key, ok := s.columns[column]
		if !ok {
			key = column
		}
		return rows[i].Get(key)
	})
}

// SaveErrors appends diagnostic records to the errors file.
func (s *CSVSink) SaveErrors(records []checker.ErrorRecord) error {
	return s.errors.Append(len(records), func(i int, column string) string {
		switch column {
		case "sku":
			return records[i].SKU
		case "error_type":
			return records[i].ErrorType
		}
		return ""
	})
}
