// Package storage persists checked inventory rows: CSV files for the
// inventory, the processing cache and diagnostic records, and an optional
// SQLite store keeping every run with its report.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"

	"github.com/masahif/supplycheck/internal/checker"
)

const metaLastRun = "last_run_id"

// SQLiteStore keeps checked rows, diagnostic records and run reports.
// It implements checker.Sink for the run opened with BeginRun.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

var _ checker.Sink = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// InitSchema creates the database schema
func (s *SQLiteStore) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginRun registers a new run and makes it the target of SaveRows and
// SaveErrors.
func (s *SQLiteStore) BeginRun(shopName string) (string, error) {
	runID := uuid.NewString()
	if _, err := s.db.Exec(
		"INSERT INTO check_runs (run_id, shop_name, started_at) VALUES (?, ?, ?)",
		runID, shopName, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	if err := s.SetMeta(metaLastRun, runID); err != nil {
		return "", err
	}
	s.runID = runID
	return runID, nil
}

// FinishRun stores the final report of the current run.
func (s *SQLiteStore) FinishRun(report checker.ReportSnapshot) error {
	if s.runID == "" {
		return ErrNoRun
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := s.db.Exec(
		"UPDATE check_runs SET finished_at = ?, report_json = ? WHERE run_id = ?",
		time.Now().UTC(), string(data), s.runID,
	); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// SaveRows upserts rows of the current run keyed by SKU.
func (s *SQLiteStore) SaveRows(rows []*checker.Row) error {
	if s.runID == "" {
		return ErrNoRun
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO checked_rows (
			run_id, sku, supplier_link, variation,
			supplier_price, supplier_shipping, supplier_qty,
			supplier_name, supplier_days, part_number, product_dimensions,
			color, power_source, voltage, wattage, included_components, title,
			extra_json, checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, r := range rows {
		extra, err := encodeExtra(r.Extra)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			s.runID, r.SKU, r.SupplierLink, r.Variation.String(),
			r.SupplierPrice, r.SupplierShipping, r.SupplierQty,
			r.SupplierName, r.SupplierDays, r.PartNumber, r.ProductDimensions,
			r.Color, r.PowerSource, r.Voltage, r.Wattage, r.IncludedComponents, r.Title,
			extra, now,
		); err != nil {
			return fmt.Errorf("failed to save row %s: %w", r.SKU, err)
		}
	}

	return tx.Commit()
}

// SaveErrors appends diagnostic records of the current run.
func (s *SQLiteStore) SaveErrors(records []checker.ErrorRecord) error {
	if s.runID == "" {
		return ErrNoRun
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT INTO check_errors (run_id, sku, error_type, occurred_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := stmt.Exec(s.runID, rec.SKU, rec.ErrorType, now); err != nil {
			return fmt.Errorf("failed to save error for %s: %w", rec.SKU, err)
		}
	}

	return tx.Commit()
}

// Rows returns the rows stored for a run ordered by SKU.
func (s *SQLiteStore) Rows(runID string) ([]*checker.Row, error) {
	rs, err := s.db.Query(`
		SELECT sku, supplier_link, variation,
			supplier_price, supplier_shipping, supplier_qty,
			supplier_name, supplier_days, part_number, product_dimensions,
			color, power_source, voltage, wattage, included_components, title,
			extra_json
		FROM checked_rows WHERE run_id = ? ORDER BY sku
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var rows []*checker.Row
	for rs.Next() {
		var (
			r         checker.Row
			variation string
			extra     sql.NullString
		)
		if err := rs.Scan(
			&r.SKU, &r.SupplierLink, &variation,
			&r.SupplierPrice, &r.SupplierShipping, &r.SupplierQty,
			&r.SupplierName, &r.SupplierDays, &r.PartNumber, &r.ProductDimensions,
			&r.Color, &r.PowerSource, &r.Voltage, &r.Wattage, &r.IncludedComponents, &r.Title,
			&extra,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Variation = checker.ParseTristate(variation)
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &r.Extra); err != nil {
				return nil, fmt.Errorf("failed to decode extra columns of %s: %w", r.SKU, err)
			}
		}
		rows = append(rows, &r)
	}
	return rows, rs.Err()
}

// Errors returns the diagnostic records of a run in insertion order.
func (s *SQLiteStore) Errors(runID string) ([]checker.ErrorRecord, error) {
	rs, err := s.db.Query("SELECT sku, error_type FROM check_errors WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var records []checker.ErrorRecord
	for rs.Next() {
		var rec checker.ErrorRecord
		if err := rs.Scan(&rec.SKU, &rec.ErrorType); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		records = append(records, rec)
	}
	return records, rs.Err()
}

// Report returns the stored report of a finished run.
func (s *SQLiteStore) Report(runID string) (checker.ReportSnapshot, error) {
	var data sql.NullString
	err := s.db.QueryRow("SELECT report_json FROM check_runs WHERE run_id = ?", runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return checker.ReportSnapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return checker.ReportSnapshot{}, fmt.Errorf("failed to get report: %w", err)
	}
	if !data.Valid {
		return checker.ReportSnapshot{}, fmt.Errorf("%w: %s", ErrRunNotFinished, runID)
	}

	var snap checker.ReportSnapshot
	if err := json.Unmarshal([]byte(data.String), &snap); err != nil {
		return checker.ReportSnapshot{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return snap, nil
}

// LastRunID returns the most recently started run, or "" if there is none.
func (s *SQLiteStore) LastRunID() (string, error) {
	return s.GetMeta(metaLastRun)
}

// GetMeta retrieves a metadata value
func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStore) SetMeta(key, value string) error {
	if _, err := s.db.Exec("INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

func encodeExtra(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extra columns: %w", err)
	}
	return string(data), nil
}
