package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	attestationHandler "attestor/internal/attestation/handler"
	attestationMetrics "attestor/internal/attestation/metrics"
	attestationService "attestor/internal/attestation/service"
	"attestor/internal/attestation/signer"
	"attestor/internal/attestation/store"
	"attestor/internal/chaindata"
	"attestor/internal/chaindata/explorer"
	"attestor/internal/chaindata/rpc"
	"attestor/internal/eligibility/aggregator"
	"attestor/internal/eligibility/criteria"
	"attestor/internal/platform/config"
	"attestor/internal/platform/health"
	"attestor/internal/platform/httpserver"
	"attestor/internal/platform/logger"
	"attestor/internal/platform/tracer"
	httptransport "attestor/internal/transport/http"
	"attestor/pkg/platform/middleware/request"
)

const dialTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	sig, err := signer.FromHex(cfg.SignerPrivateKey)
	if err != nil {
		log.Error("invalid signing key", "error", err)
		os.Exit(1)
	}

	log.Info("initializing attestor",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"signer", sig.Address().String(),
	)

	ctx := context.Background()
	chains, err := buildChainRouter(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize chain data", "error", err)
		os.Exit(1)
	}

	registry, err := loadCriteria(cfg, chains)
	if err != nil {
		log.Error("failed to load criteria", "error", err)
		os.Exit(1)
	}
	if unservable := registry.Unservable(chains); len(unservable) > 0 {
		for _, c := range unservable {
			account, history := c.Kind.Needs()
			log.Error("criterion chain lacks a required provider",
				"criterion", c.ID,
				"kind", c.Kind,
				"chain", c.Chain.String(),
				"needs_rpc", account,
				"needs_explorer", history,
			)
		}
		os.Exit(1)
	}
	log.Info("criteria loaded", "count", registry.Len())

	receipts, err := openReceipts(cfg)
	if err != nil {
		log.Error("failed to open receipt ledger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := receipts.Close(); err != nil {
			log.Error("failed to close receipt ledger", "error", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	trc := tracer.NewOTel()
	agg := aggregator.New(
		aggregator.WithLogger(log),
		aggregator.WithTracer(trc),
	)
	svc := attestationService.New(registry, agg, sig,
		attestationService.WithLogger(log),
		attestationService.WithMetrics(attestationMetrics.New(promRegistry)),
		attestationService.WithTracer(trc),
		attestationService.WithReceipts(receipts),
		attestationService.WithTimeout(cfg.RequestTimeout),
	)

	healthHandler := health.New(cfg.Environment, health.WithSigner(sig.Address().String()))
	for _, chain := range chains.Chains() {
		healthHandler.RegisterCheck("chain:"+chain.String(), func(ctx context.Context) error {
			return chains.CheckChain(ctx, chain)
		})
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        request.NewMetrics(promRegistry),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Health:         healthHandler,
		APIs:           []httptransport.Registrar{attestationHandler.New(svc, log)},
	})

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	log.Info("starting http server", "addr", cfg.Addr)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		log.Error("server error", "error", err)
		return
	}

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return
	}

	log.Info("server stopped")
}

// buildChainRouter dials a JSON-RPC endpoint and creates an explorer client for
// every configured chain.
func buildChainRouter(ctx context.Context, cfg config.Server, log *slog.Logger) (*chaindata.Router, error) {
	router := chaindata.NewRouter(chaindata.WithLogger(log))
	for _, chain := range cfg.ChainIDs() {
		endpoints := cfg.Chains[chain]

		var account chaindata.AccountReader
		if endpoints.RPCURL != "" {
			dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
			client, err := rpc.Dial(dialCtx, endpoints.RPCURL, chain)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("dial rpc for chain %s: %w", chain, err)
			}
			account = client
		}

		var history chaindata.HistoryReader
		if endpoints.ExplorerURL != "" {
			history = explorer.New(explorer.Config{
				BaseURL: endpoints.ExplorerURL,
				APIKey:  cfg.ExplorerAPIKey,
				Timeout: cfg.RequestTimeout,
			})
		}

		if err := router.Register(chain, account, history); err != nil {
			return nil, err
		}
		log.Info("chain registered",
			"chain", chain.String(),
			"rpc", account != nil,
			"explorer", history != nil,
		)
	}
	return router, nil
}

func loadCriteria(cfg config.Server, chains *chaindata.Router) (*criteria.Registry, error) {
	if cfg.CriteriaFile == "" {
		return criteria.Defaults(chains)
	}
	return criteria.Load(cfg.CriteriaFile, chains)
}

func openReceipts(cfg config.Server) (store.Store, error) {
	if cfg.ReceiptsDir == "" {
		return store.NewInMemoryStore(), nil
	}
	return store.OpenPebble(cfg.ReceiptsDir)
}
