package inquiry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
)

// ResultPoller polls the result endpoint with a fixed attempt budget and a fixed
// delay between empty answers. Any error ends polling at once.
type ResultPoller struct {
	logger   *zap.Logger
	client   *Client
	interval time.Duration
	attempts int
}

func NewPoller(logger *zap.Logger, client *Client, interval time.Duration, attempts int) *ResultPoller {
	if attempts < 1 {
		attempts = 1
	}
	return &ResultPoller{
		logger:   logger,
		client:   client,
		interval: interval,
		attempts: attempts,
	}
}

// Poll returns the first non-empty record list.
func (p *ResultPoller) Poll(ctx context.Context, id RequestID) ([]ResultItem, error) {
	for attempt := 1; attempt <= p.attempts; attempt++ {
		resp, err := p.client.Result(ctx, id)
		if err != nil {
			metrics.PollAttempts.Observe(float64(attempt))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: result: %v", ErrTransport, err)
		}
		if resp.Code == nil {
			metrics.PollAttempts.Observe(float64(attempt))
			return nil, fmt.Errorf("%w: result: response has no code", ErrTransport)
		}
		if *resp.Code != 0 {
			metrics.PollAttempts.Observe(float64(attempt))
			return nil, &RejectedError{Op: opResult, Code: *resp.Code, Msg: resp.Msg}
		}
		if len(resp.Data.Items) > 0 {
			metrics.PollAttempts.Observe(float64(attempt))
			return resp.Data.Items, nil
		}

		p.logger.Debug("inquiry.poll_empty",
			zap.String("request_id", string(id)),
			zap.Int("attempt", attempt))

		if attempt == p.attempts {
			break
		}
		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	metrics.PollAttempts.Observe(float64(p.attempts))
	return nil, fmt.Errorf("%w (%d attempts)", ErrPollTimeout, p.attempts)
}
