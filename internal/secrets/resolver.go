package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/secrets"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/utils"
)

const headerPrefix = "header."

// HeaderResolver merges static request headers with credentials stored in a
// secrets manager, caching the resolved set locally to reduce API calls.
//
// Secret layout: {"token": "..."} becomes "Authorization: Bearer ...";
// {"header.X-App": "..."} becomes "X-App: ...".
type HeaderResolver struct {
	logger     *zap.Logger
	base       map[string]string
	secretName string
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[map[string]string]
}

// NewHeaderResolver constructs a resolver for one secret.
func NewHeaderResolver(
	logger *zap.Logger,
	base map[string]string,
	secretName string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[map[string]string],
) *HeaderResolver {
	return &HeaderResolver{
		logger:     logger,
		base:       base,
		secretName: secretName,
		provider:   provider,
		cache:      cache,
	}
}

// Headers returns a fresh copy of the merged header set.
func (r *HeaderResolver) Headers(ctx context.Context) (map[string]string, error) {
	resolved, err := r.cache.GetOrLoad(r.secretName, func() (map[string]string, error) {
		return r.load(ctx)
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(resolved))
	for k, v := range resolved {
		out[k] = v
	}
	return out, nil
}

func (r *HeaderResolver) load(ctx context.Context) (map[string]string, error) {
	secret, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", r.secretName),
			zap.Error(err))
		return nil, fmt.Errorf("resolve request headers from %q: %w", r.secretName, err)
	}

	headers, err := parseHeaders(secret)
	if err != nil {
		return nil, fmt.Errorf("parse secret %q: %w", r.secretName, err)
	}

	merged := make(map[string]string, len(r.base)+len(headers))
	for k, v := range r.base {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}

	r.logger.Info("aws.request_headers_resolved",
		zap.String("secret", r.secretName),
		zap.Any("headers", utils.MaskHeaders(merged)))
	return merged, nil
}

func parseHeaders(secret map[string]string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range secret {
		switch {
		case strings.EqualFold(k, "token"):
			if strings.TrimSpace(v) != "" {
				out["Authorization"] = "Bearer " + strings.TrimSpace(v)
			}
		case strings.HasPrefix(strings.ToLower(k), headerPrefix):
			name := strings.TrimSpace(k[len(headerPrefix):])
			if name != "" {
				out[name] = v
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no token or header.* entries")
	}
	return out, nil
}
