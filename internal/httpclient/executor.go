package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// RequestFunc builds a fresh request for every attempt so bodies are never reused.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Observer receives the outcome of every attempt: "ok", "http_error", "transport_error" or "decode_error".
type Observer func(op, outcome string, latency time.Duration)

// StatusError is returned for non-2xx responses when no error handler is set.
type StatusError struct {
	Tag    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Tag, e.Status)
}

// Executor handles rate-limited, optionally retrying HTTP execution with JSON decoding.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	errorHandler func(status int, body []byte) error
	observe      Observer
}

// New creates an Executor. errorHandler is called on 4xx failure responses to produce a
// backend-specific error. If nil, a *StatusError is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if retryMax < 0 {
		retryMax = 0
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		errorHandler: errorHandler,
	}
}

// WithObserver installs a per-attempt hook, typically a metrics recorder.
func (e *Executor) WithObserver(fn Observer) *Executor {
	e.observe = fn
	return e
}

func (e *Executor) record(op, outcome string, d time.Duration) {
	if e.observe != nil {
		e.observe(op, outcome, d)
	}
}

// JSONRequest returns a RequestFunc that encodes body once and replays it per attempt.
// A nil body sends no payload; query is appended to url when non-empty.
func JSONRequest(method, url string, headers map[string]string, query map[string]string, body any) (RequestFunc, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = b
	}
	return func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if len(query) > 0 {
			q := req.URL.Query()
			for k, v := range query {
				q.Set(k, v)
			}
			req.URL.RawQuery = q.Encode()
		}
		return req, nil
	}, nil
}

// DoJSON executes build with rate limiting and retries, then JSON-decodes the response into out.
// op labels logs and metrics and doubles as the rate limiter key.
func (e *Executor) DoJSON(ctx context.Context, op string, build RequestFunc, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, op); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("build %s request: %w", op, err)
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			e.record(op, "transport_error", time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			e.logger.Warn(e.tag+".http_failed",
				zap.String("op", op),
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		if readErr != nil {
			e.record(op, "transport_error", elapsed)
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			e.record(op, "http_error", elapsed)
			e.logger.Warn(e.tag+".server_error",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = &StatusError{Tag: e.tag, Status: resp.StatusCode, Body: body}
			continue
		}

		if resp.StatusCode >= 400 {
			e.record(op, "http_error", elapsed)
			if e.errorHandler != nil {
				return e.errorHandler(resp.StatusCode, body)
			}
			return &StatusError{Tag: e.tag, Status: resp.StatusCode, Body: body}
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.record(op, "decode_error", elapsed)
				e.logger.Warn(e.tag+".decode_failed",
					zap.String("op", op),
					zap.Error(err),
					zap.String("url", req.URL.String()),
					zap.Int("body_len", len(body)))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.record(op, "ok", elapsed)
		e.logger.Debug(e.tag+".http_success",
			zap.String("op", op),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return nil
	}

	return fmt.Errorf("%s %s failed after %d attempts: %w", e.tag, op, e.retryMax+1, lastErr)
}
