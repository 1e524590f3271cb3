package di

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"webllm-bridge/internal/adapter/httpapi"
	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/application/service"
	"webllm-bridge/internal/infrastructure/browser/document"
	"webllm-bridge/internal/infrastructure/browser/rod"
	"webllm-bridge/internal/infrastructure/env"
	"webllm-bridge/internal/infrastructure/logger"
	"webllm-bridge/internal/infrastructure/monitoring"
	"webllm-bridge/internal/usecase/bridge"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Container struct {
	Config  *env.Config
	Logger  *logger.LoggerAdapter
	Metrics *monitoring.Metrics
	Catalog *service.ModelRegistryImpl
	Bridge  *bridge.Bridge
	Router  *httpapi.Router

	documentDir string
}

// Options carries values the environment does not own.
type Options struct {
	Version string
	// Host replaces the rod-backed host. Tests use it to avoid a browser.
	Host output.RemoteHostPort
}

func NewContainer(cfg *env.Config, opts Options) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	documentDir, err := os.MkdirTemp("", "webllm-bridge-")
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}
	documentURL, err := document.Resolve(cfg.Bridge.Document, documentDir)
	if err != nil {
		_ = os.RemoveAll(documentDir)
		log.Close()
		return nil, fmt.Errorf("failed to prepare bridge document: %w", err)
	}

	host := opts.Host
	if host == nil {
		hostCfg := rod.DefaultConfig()
		hostCfg.Headless = cfg.Browser.Headless
		hostCfg.Bin = cfg.Browser.Bin
		hostCfg.NoSandbox = cfg.Browser.NoSandbox
		host = rod.NewHost(hostCfg, log)
	}

	catalog := service.NewDefaultModelRegistry()
	if !catalog.Has(cfg.Bridge.Model) {
		log.Warn("Configured model is not in the catalog", "model", cfg.Bridge.Model)
	}

	b := bridge.New(host, metrics, log, bridge.Config{
		Model:             cfg.Bridge.Model,
		DocumentURL:       documentURL,
		PollTimeout:       cfg.Bridge.PollTimeout,
		ProbeTimeout:      cfg.Bridge.ProbeTimeout,
		InitializeTimeout: cfg.Bridge.InitializeTimeout,
		InvokeTimeout:     cfg.Bridge.InvokeTimeout,
		RetryInitial:      cfg.Bridge.RetryInitial,
		RetryMax:          cfg.Bridge.RetryMax,
		DiagnosticsDir:    cfg.Bridge.DiagnosticsDir,
	})

	router := httpapi.NewRouter(b, catalog, metrics, log, httpapi.Config{
		Version:            opts.Version,
		Model:              cfg.Bridge.Model,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		ExposeErrorDetails: cfg.Server.ExposeErrorDetails,
		AccessLog:          true,
		AccessLogJSON:      !cfg.Logging.Development,
		AccessLogConcise:   cfg.Logging.Development,
		RateLimitEnabled:   cfg.RateLimit.Enabled,
		RateLimitRPS:       cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:     cfg.RateLimit.Burst,
	})

	log.Info("Container ready",
		"model", cfg.Bridge.Model,
		"document", documentURL,
		"headless", cfg.Browser.Headless)

	return &Container{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		Catalog:     catalog,
		Bridge:      b,
		Router:      router,
		documentDir: documentDir,
	}, nil
}

func (c *Container) Handler() http.Handler {
	return c.Router.Handler()
}

// Close tears the bridge down and releases everything the container created.
func (c *Container) Close(ctx context.Context) {
	if c.Bridge != nil {
		if err := c.Bridge.Teardown(ctx); err != nil {
			c.Logger.Warn("Bridge teardown failed", "error", err)
		}
	}
	if c.documentDir != "" {
		_ = os.RemoveAll(c.documentDir)
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
