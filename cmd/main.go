package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"wallet-monitor/internal/aggregator"
	"wallet-monitor/internal/balances"
	"wallet-monitor/internal/config"
	"wallet-monitor/internal/database"
	"wallet-monitor/internal/emitters"
	"wallet-monitor/internal/events"
	"wallet-monitor/internal/explorer"
	"wallet-monitor/internal/gateway"
	"wallet-monitor/internal/health"
	"wallet-monitor/internal/indexer"
	"wallet-monitor/internal/ingest"
	"wallet-monitor/internal/interfaces"
	"wallet-monitor/internal/logger"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"
	"wallet-monitor/internal/risk"

	"github.com/redis/go-redis/v9"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Msg("Application panicked, recovering")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel)
	lg := logger.GetLogger()

	if err := database.InitDB(cfg.Database); err != nil {
		lg.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		lg.Fatal().Err(err).Msg("Failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	m := metrics.NewMonitorMetrics()
	metrics.RegisterMetrics(m)

	idx := indexer.NewClient(cfg.Indexer, cfg.HTTP.Timeout, lg)
	idx.Metrics = &m
	defer idx.Close()

	explorers := make(map[models.Network]explorer.Client)
	for _, n := range networks.All() {
		client, err := explorer.NewClient(n, cfg.Explorers[n], cfg.HTTP.Timeout, lg)
		if err != nil {
			lg.Fatal().Err(err).Str("network", n.String()).Msg("Failed to build explorer client")
		}
		explorers[n] = client
	}

	var emitter interfaces.EventEmitter = &events.LogEmitter{}
	if cfg.Kafka.Enabled {
		emitter = &events.LogEmitter{
			WrappedEmitter: emitters.NewKafkaEmitter(cfg.Kafka.BrokerAddress, cfg.Kafka.Topic),
		}
	}
	defer emitter.Close()

	bus := events.NewBus()
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := ingest.NewPoller(
		idx,
		networks.Default(),
		networks.StablecoinContracts(networks.Default()),
		cfg.Ingest.PollInterval,
		cfg.Indexer.Limit,
		bus,
		emitter,
		lg,
		&m,
	)
	go poller.Run(ctx)

	agg := aggregator.NewAggregator(idx, networks.EVMNetworks(), cfg.Ingest.AggregateInterval, cfg.Indexer.Limit, lg, &m)
	go agg.Run(ctx)

	tracker := balances.NewTracker(idx, cfg.Ingest.BalanceInterval, lg, &m)
	seedTrackedWallets()
	startBalanceTracking(ctx, tracker)
	defer tracker.Stop()

	analyzer := risk.NewAnalyzer(explorers, lg)
	analyzer.Fallback = idx.WalletTransactions

	health.SetReady(true)

	server := gateway.NewServer(gateway.NewAuthenticator(rdb, lg), analyzer, tracker, bus, lg, &m)
	if err := server.Start(ctx, cfg.Gateway.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal().Err(err).Msg("Gateway server failed")
	}
}
