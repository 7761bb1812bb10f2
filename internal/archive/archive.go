package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/utils"
)

// ErrBadConfig means the archive settings are unusable; no connection was attempted.
var ErrBadConfig = errors.New("archive: bad config")

// Archive stores the present cells of written reports.
type Archive interface {
	SaveReport(ctx context.Context, rep model.Report) (int, error)
	Close() error
}

// QuoteRow is one archived cell.
type QuoteRow struct {
	RunID      string
	Term       string
	Instrument string
	Structure  string
	Vendor     string
	ValuePct   float64
	CreatedAt  time.Time
}

// Rows flattens the present cells of rep. Absent cells are not archived.
func Rows(rep model.Report) []QuoteRow {
	created := rep.GeneratedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var out []QuoteRow
	for _, row := range rep.Rows {
		for i, c := range row.Cells {
			if !c.Valid || i >= len(rep.Columns) {
				continue
			}
			col := rep.Columns[i]
			out = append(out, QuoteRow{
				RunID:      rep.RunID,
				Term:       rep.Term.Code,
				Instrument: row.Instrument,
				Structure:  col.Structure,
				Vendor:     col.Vendor,
				ValuePct:   c.Value,
				CreatedAt:  created,
			})
		}
	}
	return out
}

// Config selects and configures the archive backend.
type Config struct {
	Driver      string // none, postgres, sqlite
	DatabaseURL string
	SQLitePath  string
	Pool        PGPoolConfig
}

// Open returns the configured archive, or nil for driver "none".
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Archive, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "postgres", "postgresql", "pg":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: driver postgres needs DATABASE_URL", ErrBadConfig)
		}
		logger.Info("archive.opening", zap.String("driver", "postgres"), zap.String("dsn", utils.MaskDSN(cfg.DatabaseURL)))
		pg, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		logger.Info("archive.opening", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		lite, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("%w: unknown archive driver %q", ErrBadConfig, cfg.Driver)
	}
}
