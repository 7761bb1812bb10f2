package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// SQLite archives rows into a local database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the archive database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		path = "output/archive.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=3000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s %w", pragma, err)
		}
	}
	s := &SQLite{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_archive (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			term        TEXT NOT NULL,
			instrument  TEXT NOT NULL,
			structure   TEXT NOT NULL,
			vendor      TEXT NOT NULL,
			value_pct   REAL NOT NULL,
			created_at  TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_archive_instrument ON quote_archive(instrument, term, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_archive_run ON quote_archive(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate archive schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) SaveReport(ctx context.Context, rep model.Report) (int, error) {
	rows := Rows(rep)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quote_archive (run_id, term, instrument, structure, vendor, value_pct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Term, r.Instrument, r.Structure, r.Vendor,
			r.ValuePct, r.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return 0, fmt.Errorf("insert %s/%s/%s: %w", r.Instrument, r.Structure, r.Vendor, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	metrics.ArchiveRowsTotal.Add(float64(len(rows)))
	s.logger.Info("archive.sqlite.saved",
		zap.String("run_id", rep.RunID),
		zap.String("term", rep.Term.Code),
		zap.Int("rows", len(rows)))
	return len(rows), nil
}

// Latest returns the newest archived value for one cell.
func (s *SQLite) Latest(ctx context.Context, instrument, term, structure, vendor string) (float64, bool, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `
		SELECT value_pct FROM quote_archive
		WHERE instrument = ? AND term = ? AND structure = ? AND vendor = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, instrument, term, structure, vendor).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
