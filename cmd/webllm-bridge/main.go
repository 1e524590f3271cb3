package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webllm-bridge/internal/di"
	"webllm-bridge/internal/infrastructure/env"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envService := env.NewEnvService()

	cfg, err := envService.Config()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	container, err := di.NewContainer(cfg, di.Options{Version: version})
	if err != nil {
		log.Printf("Initialization error: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := container.Logger

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		container.Close(shutdownCtx)
	}()

	if cfg.Bridge.EagerInit {
		if cfg.Bridge.FailFast {
			logger.Info("Initializing engine before accepting requests")
			if err := container.Bridge.Initialize(ctx); err != nil {
				logger.Error("Engine initialization failed at startup", "error", err)
				return 1
			}
		} else {
			go func() {
				if err := container.Bridge.Initialize(ctx); err != nil {
					logger.Warn("Eager engine initialization failed, will retry on demand", "error", err)
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           container.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Server listening", "addr", srv.Addr, "env", envService.AppEnv(), "version", version)
	fmt.Printf(`Web-LLM OpenAI-Compatible API Server, running at: http://%s

OpenAI-Compatible Endpoints:
  GET  /v1/models
  POST /v1/chat/completions
  GET  /health
`, srv.Addr)

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete", "error", err)
	}
	return exitCode
}
