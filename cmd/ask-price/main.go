package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/app"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/config"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/logger"
)

// exit codes
const (
	exitOK         = 0
	exitTermFailed = 1
	exitBadInput   = 2
	exitInfra      = 3
	exitCanceled   = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	var terms string
	flag.StringVar(&cfg.InputFile, "input", cfg.InputFile, "instrument list (.xlsx column A or .csv)")
	flag.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "YAML catalog of terms, structures and vendors")
	flag.StringVar(&cfg.OutputPattern, "output", cfg.OutputPattern, "output path pattern; {term} and {label} are substituted")
	flag.StringVar(&terms, "terms", strings.Join(cfg.Terms, ","), "comma-separated term codes (default: every catalog term)")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "instruments processed in parallel within a term")
	flag.Parse()
	cfg.Terms = splitList(terms)

	logger.InitWithOptions(cfg.ServiceName, cfg.Env, cfg.LogLevel, logger.Options{File: cfg.LogFile})
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [ask-price]...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	a, err := app.New(ctx, cfg, logger.L())
	if err != nil {
		logg.Errorw("failed to init ask-price", "error", err)
		return initExitCode(err)
	}
	defer a.Close()

	plan, err := a.Plan(ctx, runner.RunRequest{})
	if err != nil {
		logg.Errorw("failed to prepare run", "input", cfg.InputFile, "error", err)
		return exitBadInput
	}

	res, err := a.Controller.Run(ctx, plan)
	if werr := res.WriteSummary(os.Stdout); werr != nil {
		logg.Warnw("summary.write_failed", "error", werr)
	}
	pushMetrics(cfg, logg.Desugar())

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logg.Warnw("run interrupted", "run_id", res.RunID, "error", err)
		return exitCanceled
	case res.Failed() > 0:
		return exitTermFailed
	}
	logg.Infow("[ask-price] done", "run_id", res.RunID, "terms", res.Succeeded())
	return exitOK
}
