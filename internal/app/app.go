package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/archive"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/inquiry"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/publisher"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/rabbitmq"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/rate"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/report"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/runner"
	internalsecrets "github.com/Jerry-Jiayi-He/OTC-ask-price/internal/secrets"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/sink"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/source"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/internal/store"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/config"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/eventbus"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/model"
	"github.com/Jerry-Jiayi-He/OTC-ask-price/pkg/secrets"
)

// EventStream is the JetStream stream holding run events.
const EventStream = "ASKPRICE_EVENTS"

// ErrConfig marks New failures caused by the catalog or settings. Any other
// New error means a backend (Redis, NATS, RabbitMQ, database, secrets) was unreachable.
var ErrConfig = errors.New("invalid configuration")

// App is the wired dependency graph shared by the batch CLI and the server.
type App struct {
	Config     *config.Config
	Catalog    *config.Catalog
	Layout     model.Layout
	Bus        *eventbus.EventBus
	Controller *runner.Controller

	// Optional backends; nil when not configured.
	Store store.Store
	NATS  *nats.Conn

	logger  *zap.Logger
	closers []func() error
	cancel  context.CancelFunc
}

// New wires every component described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	layout, err := cat.Layout()
	if err != nil {
		return nil, fmt.Errorf("%w: catalog layout: %w", ErrConfig, err)
	}
	logger.Info("app.catalog_loaded",
		zap.String("source", cat.Source),
		zap.Int("terms", len(cat.Terms)),
		zap.Strings("structures", layout.StructureCodes()),
		zap.Strings("vendors", layout.Vendors()))

	bgCtx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:  cfg,
		Catalog: cat,
		Layout:  layout,
		Bus:     eventbus.New(),
		logger:  logger,
		cancel:  cancel,
	}
	if err := a.wire(ctx, bgCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx, bgCtx context.Context) error {
	cfg, logger := a.Config, a.logger

	headers, err := a.headerSource(ctx, bgCtx)
	if err != nil {
		return err
	}

	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
		Cooldown:          1 * time.Second,
	})

	client := inquiry.NewClient(logger, inquiry.ClientConfig{
		CreateURL: cfg.CreateURL,
		ResultURL: cfg.ResultURL,
		Timeout:   cfg.HTTPTimeout,
		RetryMax:  cfg.HTTPRetryMax,
	}, rateMgr, headers, nil)

	svc := inquiry.NewService(logger,
		inquiry.NewSubmitter(client),
		inquiry.NewPoller(logger, client, cfg.PollInterval, cfg.MaxPollAttempts))

	if cfg.RedisAddr != "" {
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, logger)
		if err != nil {
			return fmt.Errorf("init result cache: %w", err)
		}
		a.Store = rs
		a.closers = append(a.closers, rs.Close)
		svc.WithCache(rs, cfg.ResultCacheTTL)
	}

	a.Controller = runner.NewController(logger,
		report.NewAggregator(logger, svc, cfg.Concurrency),
		sink.New(logger)).
		WithPublisher(a.Bus)

	arch, err := archive.Open(ctx, archive.Config{
		Driver:      cfg.ArchiveDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		Pool: archive.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		},
	}, logger)
	if errors.Is(err, archive.ErrBadConfig) {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}
	if arch != nil {
		a.closers = append(a.closers, arch.Close)
		a.Controller.WithArchive(arch)
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		pub, err := publisher.New(nc, EventStream, cfg.ServiceName, logger)
		if err != nil {
			nc.Close()
			return fmt.Errorf("init NATS publisher: %w", err)
		}
		pub.Attach(a.Bus)
		a.NATS = nc
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
	}

	if cfg.RabbitMQURL != "" {
		rp, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, a.Bus, logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rp.Close)
	}
	return nil
}

// headerSource returns static headers, or a secrets-backed resolver when
// AUTH_SECRET_NAME is set.
func (a *App) headerSource(ctx, bgCtx context.Context) (inquiry.HeaderSource, error) {
	cfg := a.Config
	base := cfg.Headers(a.Catalog)
	if cfg.AuthSecretName == "" {
		return inquiry.StaticHeaders(base), nil
	}

	provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("init secrets provider: %w", err)
	}
	cache := secrets.NewCache[map[string]string](cfg.SecretCacheTTL)
	if cfg.SecretCacheTTL > 0 {
		go cache.RunCleaner(bgCtx, cfg.SecretCacheTTL)
	}

	return internalsecrets.NewHeaderResolver(a.logger, base, cfg.AuthSecretName, provider, cache), nil
}

// Plan reads the instrument list and selects the terms of one run.
// Request fields override INPUT_FILE and TERMS.
func (a *App) Plan(ctx context.Context, req runner.RunRequest) (runner.Plan, error) {
	input := a.Config.InputFile
	if req.Input != "" {
		input = req.Input
	}
	instruments, err := source.Open(input).Instruments(ctx)
	if err != nil {
		return runner.Plan{}, err
	}

	codes := a.Config.Terms
	if len(req.Terms) > 0 {
		codes = req.Terms
	}
	terms, err := a.Catalog.SelectTerms(codes)
	if err != nil {
		return runner.Plan{}, err
	}

	return runner.Plan{
		Instruments: instruments,
		Terms:       terms,
		Layout:      a.Layout,
		ProductType: a.Config.ProductType,
		Scale:       a.Config.InquiryScale,
		OutputPath:  a.Config.OutputPath,
	}, nil
}

// Close flushes pending events and releases every backend in reverse order.
func (a *App) Close() {
	a.Bus.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("app.close_failed", zap.Error(err))
		}
	}
	a.closers = nil
	a.cancel()
}
