package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/api"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/app"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/jobs"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/config"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	cfg.ServiceName = "ask-price-server"

	logger.InitWithOptions(cfg.ServiceName, cfg.Env, cfg.LogLevel, logger.Options{File: cfg.LogFile})
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [ask-price-server]...")

	// --- Components ---
	a, err := app.New(ctx, cfg, logger.L())
	if err != nil {
		logg.Fatalw("failed to init ask-price", "error", err)
	}

	// --- Run manager ---
	mgr := runner.NewManager(ctx, logger.L(), a.Controller, a.Plan).WithTimeout(cfg.RunTimeout)
	if a.Store != nil {
		mgr.WithStore(a.Store)
	}

	// --- Scheduler ---
	var sched *jobs.RunScheduler
	if cfg.ScheduleInterval > 0 {
		sched = jobs.NewRunScheduler(logger.L(), mgr, cfg.ScheduleInterval)
		go sched.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	server := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	api.RegisterRoutes(server, a.NATS, a.Store, api.NewRunHandler(logger.L(), mgr))

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := server.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[ask-price-server] running",
		"env", cfg.Env,
		"terms", len(a.Catalog.Terms),
		"schedule_interval", cfg.ScheduleInterval,
		"concurrency", cfg.Concurrency)

	<-ctx.Done()
	logg.Info("shutting down [ask-price-server]...")

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	// ctx is done, so an in-flight run winds down on its own
	mgr.Wait()
	a.Close()
}
