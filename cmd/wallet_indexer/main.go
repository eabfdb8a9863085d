package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet_indexer/internal/app/port"
	"wallet_indexer/internal/app/provider"
	"wallet_indexer/internal/app/service"
	"wallet_indexer/internal/client"
	"wallet_indexer/internal/domain/entity"
	"wallet_indexer/internal/infrastructure/cache"
	"wallet_indexer/internal/infrastructure/configloader"
	networkclient "wallet_indexer/internal/infrastructure/network/client"
	networkdefinition "wallet_indexer/internal/infrastructure/network/definition"
	"wallet_indexer/internal/infrastructure/repository"
	"wallet_indexer/internal/infrastructure/restapi"
	"wallet_indexer/internal/infrastructure/tokenloader"
	"wallet_indexer/internal/infrastructure/walletloader"
	"wallet_indexer/internal/pkg/logger"
	"wallet_indexer/internal/pkg/metrics"
	"wallet_indexer/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yml")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	appLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		logger.Fatal("Failed to initialize logger", err)
	}
	defer func() { _ = appLogger.Sync() }()
	logger.SetDefaultSlog(appLogger)
	appLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	endpoints := make(map[entity.Chain]string)
	for _, chain := range entity.AllChains() {
		endpoints[chain] = cfg.RPCURL(chain)
	}
	networks, err := networkdefinition.NewRegistry(entity.AllChains(), endpoints, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to build network registry", zap.Error(err))
	}

	tokens, err := provider.NewTokenProvider(tokenloader.NewTokenLoader(cfg.TokenFiles(), appLogger), appLogger).GetTokensByChain()
	if err != nil {
		appLogger.Fatal("Failed to load token lists", zap.Error(err))
	}

	opts := networkclient.AdapterOptions{
		BatchSize:     cfg.Indexer.BatchSize,
		MaxConcurrent: cfg.Indexer.MaxConcurrent,
		Timeout:       cfg.Timeout(),
		RateLimit:     cfg.Indexer.RateLimit,
		Burst:         cfg.Indexer.BurstLimit,
	}

	evmClients := networkclient.NewEVMClientProvider(networks, &http.Client{Timeout: cfg.Timeout()}, appLogger)
	defer evmClients.Close()
	evmAdapter, err := networkclient.NewEVMAdapter(evmClients, networks.Chains(entity.FamilyEVM), tokens, opts, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create EVM adapter", zap.Error(err))
	}

	btcParams, err := networkclient.ParseBitcoinNetwork(cfg.Bitcoin.Network)
	if err != nil {
		appLogger.Fatal("Invalid bitcoin network", zap.Error(err))
	}
	deriver := networkclient.NewXpubDeriver(btcParams, cfg.Bitcoin.XpubGapLimit, time.Duration(cfg.Bitcoin.DerivationCacheMinutes)*time.Minute)
	btcAdapter, err := networkclient.NewBitcoinAdapter(networks, deriver, opts, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create bitcoin adapter", zap.Error(err))
	}

	oracle := client.NewCoinStatsClient(
		cfg.PriceOracle.BaseURL,
		cfg.APIKey(configloader.PriceProviderCoinStats),
		cfg.PriceOracle.Currency,
		cfg.Timeout(),
		m,
		appLogger,
	)

	indexer, err := service.NewMultiChainIndexer([]port.ChainAdapter{evmAdapter, btcAdapter}, oracle, m, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create indexer", zap.Error(err))
	}

	statsRepo, err := repository.NewSQLiteSyncStatsRepository(ctx, cfg.Database.Path, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open sync stats database", zap.Error(err))
	}
	defer statsRepo.Close()

	walletCache := cache.NewWalletCache(m)
	if cfg.WalletsFile != "" {
		if _, err := provider.SeedWallets(walletloader.NewWalletFileLoader(cfg.WalletsFile, appLogger), walletCache, appLogger); err != nil {
			appLogger.Warn("Seed wallets not loaded", zap.Error(err))
		}
	}

	syncer := service.NewWalletSyncService(indexer, statsRepo, appLogger)
	scheduler := service.NewSyncScheduler(walletCache, syncer, service.SchedulerOptions{
		Tick:        time.Duration(cfg.Sync.TickSeconds) * time.Second,
		Concurrency: cfg.Sync.Concurrency,
		Interval:    cfg.SyncInterval,
	}, appLogger)
	if cfg.Sync.SchedulerEnabled {
		go scheduler.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := restapi.NewHandler(indexer, walletCache, scheduler, syncer, appLogger)
	router := restapi.SetupRouter(handler, registry, restapi.RouterOptions{
		SwaggerSpec: cfg.Server.SwaggerSpec,
		EnablePprof: cfg.Server.EnablePprof,
	}, appLogger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		appLogger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Server exiting")
}
