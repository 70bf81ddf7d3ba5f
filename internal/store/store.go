// Package store persists scan history in a local SQLite database. One
// row per scan run plus one row per open port found, enough to list
// past runs and diff consecutive runs of the same target set.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/metrics"
	"github.com/anstrom/portscout/internal/portset"
	"github.com/anstrom/portscout/internal/probe"
	"github.com/anstrom/portscout/internal/scan"
)

//go:embed schema.sql
var schema string

func init() {
	// modernc.org/sqlite registers as "sqlite", a driver name sqlx does
	// not map to a bind type on its own.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const (
	storeDirPerm = 0750

	// SQLite supports a single writer; extra connections only contend.
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = time.Hour
)

// ScanRecord is one persisted scan run.
type ScanRecord struct {
	RunID         string `db:"run_id"`
	StartedAt     int64  `db:"started_at"`
	DurationMS    int64  `db:"duration_ms"`
	Targets       string `db:"targets"`
	Ports         string `db:"ports"`
	HostCount     int    `db:"host_count"`
	ProbeCount    int    `db:"probe_count"`
	OpenCount     int    `db:"open_count"`
	ClosedCount   int    `db:"closed_count"`
	FilteredCount int    `db:"filtered_count"`
	Canceled      bool   `db:"canceled"`
}

// Started returns the run start time.
func (r *ScanRecord) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// Duration returns the run wall time.
func (r *ScanRecord) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// OpenPortRecord is one open port observed during a run.
type OpenPortRecord struct {
	RunID  string `db:"run_id"`
	Host   string `db:"host"`
	Port   int    `db:"port"`
	Banner string `db:"banner"`
}

// Store wraps the history database.
type Store struct {
	db   *sqlx.DB
	path string
}

// DefaultPath returns the standard history database location under the
// user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapStoreError(errors.CodeStoreOpen, "cannot determine home directory", err)
	}
	return filepath.Join(home, ".portscout", "history.db"), nil
}

// Open opens or creates the history store at path. An empty path falls
// back to DefaultPath. The schema is applied on every open.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, errors.ErrStoreOpen(path, err)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, errors.ErrStoreOpen(path, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.ErrStoreOpen(path, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapStoreError(errors.CodeStoreMigrate, "failed to apply history schema", err)
	}

	logging.InfoStore("History store opened", "path", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TargetsKey normalizes a target list into the string scans are grouped
// by when looking up previous runs.
func TargetsKey(targets []string) string {
	return strings.Join(targets, ",")
}

// SaveReport persists one finished scan run.
func (s *Store) SaveReport(ctx context.Context, report *scan.Report) error {
	start := time.Now()
	err := s.saveReport(ctx, report)
	metrics.RecordStoreQuery("save_report", time.Since(start), err == nil)

	if err != nil {
		logging.ErrorStore("Failed to save scan", err, "run_id", report.RunID)
		return err
	}
	logging.InfoStore("Scan saved",
		"run_id", report.RunID,
		"open_ports", report.Summary.Open)
	return nil
}

func (s *Store) saveReport(ctx context.Context, report *scan.Report) error {
	record := &ScanRecord{
		RunID:         report.RunID,
		StartedAt:     report.StartedAt.Unix(),
		DurationMS:    report.Duration.Milliseconds(),
		Targets:       TargetsKey(report.Targets),
		Ports:         portset.Format(report.Ports),
		HostCount:     len(report.Hosts),
		ProbeCount:    report.Summary.TotalProbes,
		OpenCount:     report.Summary.Open,
		ClosedCount:   report.Summary.Closed,
		FilteredCount: report.Summary.Filtered,
		Canceled:      report.Canceled,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.ErrStoreQuery("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertScan = `
		INSERT INTO scans (run_id, started_at, duration_ms, targets, ports,
			host_count, probe_count, open_count, closed_count, filtered_count, canceled)
		VALUES (:run_id, :started_at, :duration_ms, :targets, :ports,
			:host_count, :probe_count, :open_count, :closed_count, :filtered_count, :canceled)`

	if _, err := tx.NamedExecContext(ctx, insertScan, record); err != nil {
		return errors.ErrStoreQuery("insert scan", err)
	}

	const insertPort = `
		INSERT INTO open_ports (run_id, host, port, banner)
		VALUES (:run_id, :host, :port, :banner)`

	for _, result := range report.Results {
		if result.State != probe.StateOpen {
			continue
		}
		row := &OpenPortRecord{
			RunID:  report.RunID,
			Host:   result.Host,
			Port:   result.Port,
			Banner: result.Banner,
		}
		if _, err := tx.NamedExecContext(ctx, insertPort, row); err != nil {
			return errors.ErrStoreQuery("insert open port", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.ErrStoreQuery("commit transaction", err)
	}
	return nil
}

// ListScans returns the most recent runs, newest first.
func (s *Store) ListScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	start := time.Now()
	records, err := s.listScans(ctx, limit)
	metrics.RecordStoreQuery("list_scans", time.Since(start), err == nil)
	return records, err
}

func (s *Store) listScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	const query = `
		SELECT run_id, started_at, duration_ms, targets, ports, host_count,
			probe_count, open_count, closed_count, filtered_count, canceled
		FROM scans
		ORDER BY started_at DESC, run_id
		LIMIT ?`

	var records []ScanRecord
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, errors.ErrStoreQuery("list scans", err)
	}
	return records, nil
}

// GetScan returns one run by ID, or nil when it does not exist.
func (s *Store) GetScan(ctx context.Context, runID string) (*ScanRecord, error) {
	start := time.Now()
	record, err := s.getScan(ctx, runID)
	metrics.RecordStoreQuery("get_scan", time.Since(start), err == nil)
	return record, err
}

func (s *Store) getScan(ctx context.Context, runID string) (*ScanRecord, error) {
	const query = `
		SELECT run_id, started_at, duration_ms, targets, ports, host_count,
			probe_count, open_count, closed_count, filtered_count, canceled
		FROM scans
		WHERE run_id = ?`

	var record ScanRecord
	err := s.db.GetContext(ctx, &record, query, runID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrStoreQuery("get scan", err)
	}
	return &record, nil
}

// LastScan returns the most recent run for a target set, or nil when
// the set has never been scanned.
func (s *Store) LastScan(ctx context.Context, targetsKey string) (*ScanRecord, error) {
	start := time.Now()
	record, err := s.lastScan(ctx, targetsKey)
	metrics.RecordStoreQuery("last_scan", time.Since(start), err == nil)
	return record, err
}

func (s *Store) lastScan(ctx context.Context, targetsKey string) (*ScanRecord, error) {
	const query = `
		SELECT run_id, started_at, duration_ms, targets, ports, host_count,
			probe_count, open_count, closed_count, filtered_count, canceled
		FROM scans
		WHERE targets = ?
		ORDER BY started_at DESC, run_id
		LIMIT 1`

	var record ScanRecord
	err := s.db.GetContext(ctx, &record, query, targetsKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrStoreQuery("last scan", err)
	}
	return &record, nil
}

// OpenPorts returns the open ports recorded for a run, ordered by host
// then port.
func (s *Store) OpenPorts(ctx context.Context, runID string) ([]OpenPortRecord, error) {
	start := time.Now()
	records, err := s.openPorts(ctx, runID)
	metrics.RecordStoreQuery("open_ports", time.Since(start), err == nil)
	return records, err
}

func (s *Store) openPorts(ctx context.Context, runID string) ([]OpenPortRecord, error) {
	const query = `
		SELECT run_id, host, port, banner
		FROM open_ports
		WHERE run_id = ?
		ORDER BY host, port`

	var records []OpenPortRecord
	if err := s.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, errors.ErrStoreQuery("open ports", err)
	}
	return records, nil
}
