package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/inquiry"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// Processor runs the full inquiry for one instrument.
type Processor interface {
	ProcessInstrument(ctx context.Context, rc model.RunContext, baseID string) (model.QuoteTable, inquiry.Outcome)
}

// Stats counts instrument outcomes within one term.
type Stats struct {
	Instruments  int `json:"instruments"`
	Quoted       int `json:"quoted"`
	NoQuotes     int `json:"no_quotes"`
	SubmitFailed int `json:"submit_failed"`
	PollFailed   int `json:"poll_failed"`
	Canceled     int `json:"canceled"`
}

// Failed is the number of instruments whose inquiry did not complete.
func (s Stats) Failed() int { return s.SubmitFailed + s.PollFailed }

func (s *Stats) add(o inquiry.Outcome) {
	switch o {
	case inquiry.OutcomeQuoted:
		s.Quoted++
	case inquiry.OutcomeNoQuotes:
		s.NoQuotes++
	case inquiry.OutcomeSubmitFailed:
		s.SubmitFailed++
	case inquiry.OutcomePollFailed:
		s.PollFailed++
	case inquiry.OutcomeCanceled:
		s.Canceled++
	}
}

// Aggregator drives the processor over every instrument and assembles the term report.
type Aggregator struct {
	logger      *zap.Logger
	proc        Processor
	concurrency int
	now         func() time.Time
}

// NewAggregator builds an aggregator. concurrency caps in-flight instruments; 1 is sequential.
func NewAggregator(logger *zap.Logger, proc Processor, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{
		logger:      logger,
		proc:        proc,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Aggregate returns one row per instrument, in input order, keyed by the full identifier.
// Only cancellation of ctx makes it return an error.
func (a *Aggregator) Aggregate(ctx context.Context, rc model.RunContext, instruments []string) (model.Report, Stats, error) {
	tables := make([]model.QuoteTable, len(instruments))
	outcomes := make([]inquiry.Outcome, len(instruments))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, instrument := range instruments {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("report.instrument_panicked",
						zap.String("run_id", rc.RunID),
						zap.String("instrument", instrument),
						zap.Any("panic", r),
						zap.Stack("stack"))
					tables[i] = model.NewQuoteTable(rc.Layout)
					outcomes[i] = inquiry.OutcomeSubmitFailed
				}
			}()
			tables[i], outcomes[i] = a.proc.ProcessInstrument(ctx, rc, model.BaseID(instrument))
			return nil
		})
	}
	_ = g.Wait()

	var stats Stats
	stats.Instruments = len(instruments)
	for i, o := range outcomes {
		if o == "" {
			o = inquiry.OutcomeCanceled
			tables[i] = model.NewQuoteTable(rc.Layout)
		}
		stats.add(o)
		metrics.IncInstrument(rc.Term.Code, string(o))
	}

	if err := ctx.Err(); err != nil {
		return model.Report{}, stats, err
	}

	rep := model.Report{
		RunID:       rc.RunID,
		Term:        rc.Term,
		Columns:     Columns(rc.Layout, rc.Term),
		Rows:        make([]model.Row, len(instruments)),
		GeneratedAt: a.now().UTC(),
	}
	for i, instrument := range instruments {
		rep.Rows[i] = model.Row{Instrument: instrument, Cells: RowCells(tables[i], rc.Layout)}
	}

	a.logger.Info("report.aggregated",
		zap.String("run_id", rc.RunID),
		zap.String("term", rc.Term.Code),
		zap.Int("instruments", stats.Instruments),
		zap.Int("quoted", stats.Quoted),
		zap.Int("failed", stats.Failed()))

	return rep, stats, nil
}

// Columns lists structures (outer) then vendors (inner), headed "<structure label> <term label>".
func Columns(layout model.Layout, term model.Term) []model.Column {
	cols := make([]model.Column, 0, layout.Size())
	for _, s := range layout.Structures() {
		header := s.Label + " " + term.Display()
		for _, v := range layout.Vendors() {
			cols = append(cols, model.Column{Header: header, Structure: s.Code, Vendor: v})
		}
	}
	return cols
}

// RowCells flattens a quote table in column order and converts present cells to percentages.
// A table from a different layout contributes only the cells it shares.
func RowCells(t model.QuoteTable, layout model.Layout) []model.Cell {
	cells := make([]model.Cell, 0, layout.Size())
	for _, s := range layout.Structures() {
		for _, v := range layout.Vendors() {
			cells = append(cells, Percent(t.Get(s.Code, v)))
		}
	}
	return cells
}

var hundred = decimal.NewFromInt(100)

// Percent returns round(v*100, 2) for a present cell.
func Percent(c model.Cell) model.Cell {
	if !c.Valid {
		return model.Absent
	}
	v, _ := decimal.NewFromFloat(c.Value).Mul(hundred).Round(2).Float64()
	return model.Quoted(v)
}
