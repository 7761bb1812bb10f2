package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/app"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/metrics"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/config"
)

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// initExitCode maps an app.New failure to the process exit code.
func initExitCode(err error) int {
	if errors.Is(err, app.ErrConfig) {
		return exitBadInput
	}
	return exitInfra
}

// pushMetrics flushes the run's counters to the Pushgateway, if one is configured.
func pushMetrics(cfg *config.Config, logger *zap.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, cfg.ServiceName); err != nil {
		logger.Warn("metrics.push_failed", zap.String("url", cfg.PushgatewayURL), zap.Error(err))
	}
}
