package inquiry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/store"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
)

// Outcome classifies how one instrument's inquiry ended.
type Outcome string

const (
	OutcomeQuoted       Outcome = "quoted"
	OutcomeNoQuotes     Outcome = "no_quotes"
	OutcomeSubmitFailed Outcome = "submit_failed"
	OutcomePollFailed   Outcome = "poll_failed"
	OutcomeCanceled     Outcome = "canceled"
)

// ResultCache stores raw result records between runs.
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service composes submit, poll and extract for one instrument.
type Service struct {
	logger    *zap.Logger
	submitter Submitter
	poller    Poller
	cache     ResultCache
	cacheTTL  time.Duration
}

func NewService(logger *zap.Logger, submitter Submitter, poller Poller) *Service {
	return &Service{
		logger:    logger,
		submitter: submitter,
		poller:    poller,
	}
}

// WithCache enables the result cache. ttl <= 0 disables writes.
func (s *Service) WithCache(c ResultCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// ProcessInstrument runs the inquiry for baseID. It never fails outward: every
// failure yields the all-absent table and an Outcome saying why.
func (s *Service) ProcessInstrument(ctx context.Context, rc model.RunContext, baseID string) (model.QuoteTable, Outcome) {
	empty := model.NewQuoteTable(rc.Layout)
	if ctx.Err() != nil {
		return empty, OutcomeCanceled
	}

	fields := []zap.Field{
		zap.String("run_id", rc.RunID),
		zap.String("term", rc.Term.Code),
		zap.String("instrument", baseID),
	}

	if records, ok := s.cached(ctx, rc, baseID); ok {
		return classify(Extract(records, rc.Layout))
	}

	id, err := s.submitter.Submit(ctx, rc, baseID)
	if err != nil {
		if isCanceled(ctx, err) {
			return empty, OutcomeCanceled
		}
		s.logger.Warn("inquiry.submit_failed", append(fields, zap.Error(err))...)
		return empty, OutcomeSubmitFailed
	}
	fields = append(fields, zap.String("request_id", string(id)))

	records, err := s.poller.Poll(ctx, id)
	if err != nil {
		if isCanceled(ctx, err) {
			return empty, OutcomeCanceled
		}
		s.logger.Warn("inquiry.poll_failed", append(fields, zap.Error(err))...)
		return empty, OutcomePollFailed
	}
	if len(records) == 0 {
		s.logger.Warn("inquiry.poll_failed", append(fields, zap.Error(ErrPollTimeout))...)
		return empty, OutcomePollFailed
	}

	s.store(ctx, rc, baseID, records)

	table, outcome := classify(Extract(records, rc.Layout))
	s.logger.Debug("inquiry.completed", append(fields,
		zap.Int("records", len(records)),
		zap.Int("quotes", table.Present()))...)
	return table, outcome
}

func classify(t model.QuoteTable) (model.QuoteTable, Outcome) {
	if t.Present() > 0 {
		return t, OutcomeQuoted
	}
	return t, OutcomeNoQuotes
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func resultKey(rc model.RunContext, baseID string) string {
	return store.ResultKey(rc.Term.Code, rc.Layout.Fingerprint(), rc.ProductType, rc.Scale, baseID)
}

func (s *Service) cached(ctx context.Context, rc model.RunContext, baseID string) ([]ResultItem, bool) {
	if s.cache == nil {
		return nil, false
	}
	key := resultKey(rc, baseID)
	var records []ResultItem
	found, err := s.cache.GetJSON(ctx, key, &records)
	if err != nil {
		metrics.IncCache("error")
		s.logger.Warn("inquiry.cache_read_failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found || len(records) == 0 {
		metrics.IncCache("miss")
		return nil, false
	}
	metrics.IncCache("hit")
	return records, true
}

func (s *Service) store(ctx context.Context, rc model.RunContext, baseID string, records []ResultItem) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	key := resultKey(rc, baseID)
	if err := s.cache.SetJSON(ctx, key, records, s.cacheTTL); err != nil {
		s.logger.Warn("inquiry.cache_write_failed", zap.String("key", key), zap.Error(err))
	}
}
