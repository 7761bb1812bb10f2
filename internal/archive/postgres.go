package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

var pgSchema = []string{
	`CREATE SCHEMA IF NOT EXISTS askprice;`,
	`CREATE TABLE IF NOT EXISTS askprice.quote_archive (
		run_id      TEXT             NOT NULL,
		term        TEXT             NOT NULL,
		instrument  TEXT             NOT NULL,
		structure   TEXT             NOT NULL,
		vendor      TEXT             NOT NULL,
		value_pct   DOUBLE PRECISION NOT NULL,
		created_at  TIMESTAMPTZ      NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS quote_archive_instrument_idx
		ON askprice.quote_archive (instrument, term, created_at DESC);`,
}

var pgColumns = []string{"run_id", "term", "instrument", "structure", "vendor", "value_pct", "created_at"}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// pgDB is the subset of pgxpool.Pool the archive uses.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Postgres archives rows into askprice.quote_archive with COPY.
type Postgres struct {
	db     pgDB
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects, applies the schema and returns the archive.
func NewPostgres(ctx context.Context, url string, pc PGPoolConfig, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	if pc.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	p := &Postgres{db: pool, pool: pool, logger: logger}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the archive table if needed.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate archive schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveReport(ctx context.Context, rep model.Report) (int, error) {
	rows := Rows(rep)
	if len(rows) == 0 {
		return 0, nil
	}
	src := make([][]any, len(rows))
	for i, r := range rows {
		src[i] = []any{r.RunID, r.Term, r.Instrument, r.Structure, r.Vendor, r.ValuePct, r.CreatedAt}
	}

	n, err := p.db.CopyFrom(ctx, pgx.Identifier{"askprice", "quote_archive"}, pgColumns, pgx.CopyFromRows(src))
	if err != nil {
		p.logger.Error("archive.pg.copy_failed",
			zap.String("run_id", rep.RunID),
			zap.String("term", rep.Term.Code),
			zap.Error(err))
		return 0, err
	}
	metrics.ArchiveRowsTotal.Add(float64(n))
	p.logger.Info("archive.pg.saved",
		zap.String("run_id", rep.RunID),
		zap.String("term", rep.Term.Code),
		zap.Int64("rows", n))
	return int(n), nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
