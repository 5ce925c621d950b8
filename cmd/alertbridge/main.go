package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/alertbridge/internal/clock"
	"github.com/efreitasn/alertbridge/internal/config"
	"github.com/efreitasn/alertbridge/internal/exchange"
	"github.com/efreitasn/alertbridge/internal/exchange/gateio"
	"github.com/efreitasn/alertbridge/internal/exchange/paper"
	"github.com/efreitasn/alertbridge/internal/handler"
	"github.com/efreitasn/alertbridge/internal/service"
	"github.com/efreitasn/alertbridge/internal/sink"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		slog.Error("failed to load env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	clk := clock.Real{}

	// Exchange.
	var (
		ex    exchange.Client
		venue *paper.Exchange
	)
	switch cfg.Exchange {
	case config.ExchangePaper:
		venue = paper.New(cfg.PaperPrices)
		ex = venue
		logger.Warn("paper exchange enabled, orders are simulated", slog.Int("symbols", len(cfg.PaperPrices)))
	default:
		gate, err := gateio.New(gateio.Config{
			APIKey:    cfg.GateAPIKey,
			APISecret: cfg.GateAPISecret,
			Sandbox:   cfg.GateSandbox,
			BaseURL:   cfg.GateBaseURL,
			Timeout:   cfg.ExchangeTimeout,
			RateLimit: cfg.GateRateLimit,
		})
		if err != nil {
			logger.Error("failed to create exchange client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ex = gate
		logger.Info("gate.io exchange enabled", slog.Bool("sandbox", cfg.GateSandbox))
	}

	// Sinks. The CSV log is always on; the others depend on configuration.
	sinks := []sink.Sink{sink.NewCSVSink(cfg.CSVPath, clk)}
	if cfg.GoogleSheetID != "" {
		svc, err := sink.NewSheetsService(context.Background(), cfg.GoogleServiceAccount)
		if err != nil {
			logger.Error("failed to create sheets client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sinks = append(sinks, sink.NewSheetsSink(svc, cfg.GoogleSheetID, cfg.GoogleSheetRange, clk))
	}
	if cfg.NotifyURL != "" {
		sinks = append(sinks, sink.NewNotifier(cfg.NotifyURL, cfg.NotifyTimeout))
	}
	dispatcher := sink.NewDispatcher(cfg.SinkWorkers, cfg.SinkQueueSize, logger)

	// Services.
	orderSvc := service.NewOrderService(ex, service.RetryPolicy{
		MaxAttempts: cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
	}, clk, logger)
	alertSvc := service.NewAlertService(orderSvc, dispatcher, sinks, logger)

	// Router.
	router := handler.NewRouter(alertSvc, venue, logger, cfg.CORSAllowedOrigins)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.Int("sinks", len(sinks)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then drain queued sink jobs.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("sink drain incomplete", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
