// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the streamcheck components together and owns the
// process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamcheck/internal/api"
	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/cache"
	"github.com/ManuGH/streamcheck/internal/config"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/health"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	platformnet "github.com/ManuGH/streamcheck/internal/platform/net"
	"github.com/ManuGH/streamcheck/internal/playback"
	"github.com/ManuGH/streamcheck/internal/probe"
	"github.com/ManuGH/streamcheck/internal/ratelimit"
	"github.com/ManuGH/streamcheck/internal/relay"
	"github.com/ManuGH/streamcheck/internal/scan"
	"github.com/ManuGH/streamcheck/internal/service"
	"github.com/ManuGH/streamcheck/internal/store"
	"github.com/ManuGH/streamcheck/internal/telemetry"
	"github.com/ManuGH/streamcheck/internal/validator"
)

const busBuffer = 256

// Components is the wired object graph of one streamcheck process.
type Components struct {
	Config    config.Config
	Bus       *bus.MemoryBus
	Store     *store.Store
	Validator *validator.Validator
	Scans     *scan.Manager
	Playback  *playback.Manager
	Service   *service.Service
	Relay     *relay.Handler
	Health    *health.Manager
	API       *api.Server

	closers []namedHook
	logger  zerolog.Logger
}

// BuildOption customises Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	directPreload bool
}

// WithDirectPreload preloads streams directly instead of through the relay.
// One-shot CLI scans use it since no relay is listening.
func WithDirectPreload() BuildOption {
	return func(o *buildOptions) { o.directPreload = true }
}

// Build constructs every component from cfg. The caller owns the result and
// must Close it, or hand its hooks to a Manager via RegisterShutdownHooks.
func Build(ctx context.Context, cfg config.Config, opts ...BuildOption) (*Components, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Components{
		Config: cfg,
		logger: log.WithComponent("daemon"),
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    "production",
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	c.addCloser("telemetry", tp.Shutdown)

	c.Health = health.NewManager(cfg.Version)

	verdicts, err := c.buildCache(ctx, cfg)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Bus = bus.NewMemoryBus(busBuffer)
	c.Store = store.New(store.WithNotifier(c.Bus))

	// Built-in validation service, served under /validate-stream(s).
	limiter := ratelimit.New("service", ratelimit.Config{
		GlobalRate:   rate.Limit(cfg.Service.Rate),
		GlobalBurst:  max(1, int(cfg.Service.Rate*2)),
		PerHostRate:  ratelimit.DefaultConfig().PerHostRate,
		PerHostBurst: ratelimit.DefaultConfig().PerHostBurst,
	})
	c.Service = service.New(
		service.NewDeepChecker(cfg.Scan.ProbeTimeout, httpx.NewClient(cfg.Scan.ProbeTimeout)),
		verdicts,
		limiter,
		service.Config{CacheTTL: cfg.Cache.TTL, Concurrency: cfg.Service.Concurrency},
	)

	c.Relay = relay.NewHandler(relay.Config{
		HeaderTimeout: cfg.Relay.Timeout,
		Policy:        platformnet.OutboundPolicy{AllowPrivate: cfg.Relay.AllowPrivate},
	})
	c.addCloser("relay", func(context.Context) error {
		c.Relay.CloseIdleConnections()
		return nil
	})

	client := validator.NewServiceClient(validator.ClientConfig{
		BaseURL:          cfg.Validator.URL,
		Timeout:          cfg.Validator.Timeout,
		BatchTimeout:     cfg.Validator.BatchTimeout,
		BreakerThreshold: cfg.Validator.BreakerThreshold,
		BreakerReset:     cfg.Validator.BreakerReset,
	})
	c.Health.RegisterChecker(health.NewBreakerChecker("validation_service", client.BreakerState))

	relayBase := cfg.RelayBase()
	if o.directPreload {
		relayBase = ""
	}
	c.Validator = validator.New(
		client,
		probe.New(cfg.Scan.ProbeTimeout, probe.WithHTTPClient(httpx.NewClient(cfg.Scan.ProbeTimeout))),
		validator.NewRelayPreloader(relayBase, cfg.Scan.PreloadTimeout, nil),
	)

	scanMode, validationMode := modes(cfg)
	orch := scan.NewOrchestrator(c.Validator, c.Store, scan.Config{
		QuickBatchSize:   cfg.Scan.QuickBatchSize,
		PreloadBatchSize: cfg.Scan.PreloadBatchSize,
		QuickDelay:       cfg.Scan.QuickBatchDelay,
		PreloadDelay:     cfg.Scan.PreloadBatchDelay,
	}, scan.WithPublisher(c.Bus))
	c.Scans = scan.NewManager(orch, c.Bus, scan.Defaults{ScanMode: scanMode, ValidationMode: validationMode})
	c.addCloser("scan", c.Scans.Close)
	c.Health.RegisterChecker(health.NewScanChecker(c.Scans.Active))

	// Playback loads sources directly: proxied strategies already point at the relay.
	loader := validator.NewRelayPreloader("", cfg.Playback.AttemptTimeout, nil)
	c.Playback, err = playback.NewManager(playback.Config{
		RelayBase:      cfg.RelayBase(),
		AttemptTimeout: cfg.Playback.AttemptTimeout,
		Loader:         playback.LoaderFunc(loader.Preload),
		OnPlaying:      func(url string) { c.Store.SetPreloaded(url, true) },
		Publisher:      c.Bus,
	})
	if err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("init playback: %w", err)
	}
	c.addCloser("playback", func(context.Context) error {
		c.Playback.CloseAll()
		return nil
	})

	c.API = api.New(api.Config{
		CORSOrigins:    cfg.CORSOrigins,
		RelayRateLimit: cfg.Relay.RateLimit,
		EnableTracing:  cfg.Tracing.Enabled,
		Version:        cfg.Version,
	}, api.Deps{
		Scans:    c.Scans,
		Store:    c.Store,
		Bus:      c.Bus,
		Playback: c.Playback,
		Service:  c.Service,
		Relay:    c.Relay,
		Health:   c.Health,
	})

	c.logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Bool("validation_service", client != nil).
		Bool("redis", cfg.Cache.RedisAddr != "").
		Bool("tracing", cfg.Tracing.Enabled).
		Str(log.FieldScanMode, string(scanMode)).
		Str(log.FieldValidation, string(validationMode)).
		Str("relay_base", log.RedactURL(relayBase)).
		Msg("components ready")
	return c, nil
}

func (c *Components) buildCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	if cfg.Cache.RedisAddr == "" {
		mc := cache.NewMemoryCache(time.Minute)
		c.addCloser("cache", func(context.Context) error {
			mc.Stop()
			return nil
		})
		return mc, nil
	}

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("init redis cache: %w", err)
	}
	c.addCloser("cache", func(context.Context) error { return rc.Close() })
	c.Health.RegisterChecker(health.NewPingChecker("redis", true, rc.HealthCheck))
	return rc, nil
}

func (c *Components) addCloser(name string, fn ShutdownHook) {
	c.closers = append(c.closers, namedHook{name: name, hook: fn})
}

// RegisterShutdownHooks hands component cleanup to m in build order, so
// the manager tears them down in reverse.
func (c *Components) RegisterShutdownHooks(m Manager) {
	for _, h := range c.closers {
		m.RegisterShutdownHook(h.name, h.hook)
	}
}

// Close releases every component in reverse build order.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].hook(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.closers[i].name, err))
		}
	}
	c.closers = nil
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ApplyConfig pushes the hot-reloadable settings of cfg into the running
// components: default scan modes and the log level.
func (c *Components) ApplyConfig(cfg config.Config) {
	scanMode, validationMode := modes(cfg)
	c.Scans.SetDefaults(scan.Defaults{ScanMode: scanMode, ValidationMode: validationMode})
	log.Reconfigure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version})
}

// modes parses the configured defaults. Validate already rejected bad
// values, so a parse failure keeps the stock mode.
func modes(cfg config.Config) (stream.ScanMode, stream.ValidationMode) {
	sm, err := stream.ParseScanMode(cfg.Scan.Mode)
	if err != nil {
		sm = stream.ScanQuick
	}
	vm, err := stream.ParseValidationMode(cfg.Scan.ValidationMode)
	if err != nil {
		vm = stream.ValidationLenient
	}
	return sm, vm
}
