package inquiry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/httpclient"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/rate"
)

const (
	opCreate = "create"
	opResult = "result"
)

// HeaderSource supplies the request headers, including auth, for every call.
type HeaderSource interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// StaticHeaders is a fixed header set.
type StaticHeaders map[string]string

func (h StaticHeaders) Headers(context.Context) (map[string]string, error) { return h, nil }

// ClientConfig configures the pricing backend client.
type ClientConfig struct {
	CreateURL string
	ResultURL string
	Timeout   time.Duration
	RetryMax  int // 5xx retries; 0 keeps the one-call-per-attempt protocol
}

// Client wraps low-level HTTP communication with the pricing backend.
type Client struct {
	logger  *zap.Logger
	exec    *httpclient.Executor
	cfg     ClientConfig
	headers HeaderSource
}

// NewClient constructs a backend client. httpClient may be nil.
func NewClient(logger *zap.Logger, cfg ClientConfig, rateMgr *rate.Manager, headers HeaderSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if headers == nil {
		headers = StaticHeaders{}
	}
	exec := httpclient.New(logger, rateMgr, httpClient, cfg.RetryMax, "inquiry", func(status int, body []byte) error {
		logger.Warn("inquiry.client_error",
			zap.Int("status", status),
			zap.Int("body_len", len(body)))
		return fmt.Errorf("pricing backend returned %d", status)
	}).WithObserver(metrics.ObserveAPI)

	return &Client{
		logger:  logger,
		exec:    exec,
		cfg:     cfg,
		headers: headers,
	}
}

// Create submits an inquiry.
// POST {CreateURL}
func (c *Client) Create(ctx context.Context, req *CreateRequest) (*CreateResponse, error) {
	h, err := c.headers.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve headers: %w", err)
	}
	build, err := httpclient.JSONRequest(http.MethodPost, c.cfg.CreateURL, h, nil, req)
	if err != nil {
		return nil, err
	}
	var resp CreateResponse
	if err := c.exec.DoJSON(ctx, opCreate, build, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Result fetches the computed records for an inquiry.
// GET {ResultURL}?id={id}
func (c *Client) Result(ctx context.Context, id RequestID) (*ResultResponse, error) {
	if id == "" {
		return nil, errors.New("empty request id")
	}
	h, err := c.headers.Headers(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve headers: %w", err)
	}
	build, err := httpclient.JSONRequest(http.MethodGet, c.cfg.ResultURL, h, map[string]string{"id": string(id)}, nil)
	if err != nil {
		return nil, err
	}
	var resp ResultResponse
	if err := c.exec.DoJSON(ctx, opResult, build, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
