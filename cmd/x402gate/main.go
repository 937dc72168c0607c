package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/walrus-x402/x402"
	"github.com/walrus-x402/x402/config"
	"github.com/walrus-x402/x402/logger"
	"github.com/walrus-x402/x402/metrics"
	"github.com/walrus-x402/x402/server"
)

var configPath = flag.String("config", "", "Path to configuration file (env only when empty)")

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "x402gate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gate, err := x402.New(ctx, cfg, x402.WithLogger(log), x402.WithMetrics(recorder))
	if err != nil {
		return err
	}
	defer gate.Close()

	var limiter *server.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = server.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		defer limiter.Close()
	}

	if cfg.Auth.TrustBodyWallet {
		log.Warn("request bodies may name the wallet to check; set auth.trust_body_wallet=false to use token wallets only", nil)
	}

	srv, err := server.New(server.Deps{
		Engine:          gate,
		Auth:            server.NewJWTAuthenticator(cfg.Auth.JWTSecret),
		Limiter:         limiter,
		Gatherer:        reg,
		Logger:          log,
		TrustBodyWallet: cfg.Auth.TrustBodyWallet,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("x402 gate listening", map[string]any{
			"addr":     httpServer.Addr,
			"network":  cfg.Chain.Network.String(),
			"testnet":  cfg.Chain.Network.IsTestnet(),
			"chain_id": gate.ChainID(),
			"store":    cfg.Store.Driver,
			"env":      cfg.Environment,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", map[string]any{"error": err})
		return err
	}
	log.Info("server exited", nil)
	return nil
}
