package di

import (
	"context"
	"fmt"

	"PairWatch/internal/domain/models"
	"PairWatch/internal/domain/repository"
	"PairWatch/internal/handler/api"
	"PairWatch/internal/handler/stream"
	internalrepo "PairWatch/internal/repository"
	"PairWatch/internal/service/ratelimit"
	"PairWatch/internal/services/bands"
	"PairWatch/internal/usecase"
	"PairWatch/pkg/cache"
	"PairWatch/pkg/config"
	xhttp "PairWatch/pkg/http"
	pkgkafka "PairWatch/pkg/kafka"
	"PairWatch/pkg/logger"
	"PairWatch/pkg/metrics"
	"PairWatch/pkg/server"
)

// ProvideLogger builds the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

func ProvideBackendClient(cfg *config.Config) *internalrepo.BackendClient {
	p := cfg.Backend.Paths
	paths := internalrepo.DefaultBackendPaths()
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&paths.BacktestPair, p.BacktestPair)
	override(&paths.SavedCombinations, p.SavedCombinations)
	override(&paths.ZScoreChart, p.ZScoreChart)
	override(&paths.SpreadChart, p.SpreadChart)
	override(&paths.WindowSize, p.WindowSize)
	override(&paths.SetWindowSize, p.SetWindowSize)
	return internalrepo.NewBackendClient(cfg.Backend.URL, paths, cfg.Backend.Timeout)
}

func ProvidePairSource(c *internalrepo.BackendClient) repository.PairSource     { return c }
func ProvideSeriesSource(c *internalrepo.BackendClient) repository.SeriesSource { return c }
func ProvideWindowConfig(c *internalrepo.BackendClient) repository.WindowConfig { return c }

// ProvideCache selects the memory or redis driver.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	switch cfg.Cache.Driver {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	default:
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxEntries),
			cache.WithMemoryCleanup(cfg.Cache.Cleanup),
		), nil
	}
}

func ProvideSnapshotStore(c cache.Service, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewSnapshotCache(c, cfg.Cache.TTL)
}

// ProvideSnapshotPublisher returns nil when Kafka or the snapshots topic is off.
func ProvideSnapshotPublisher(cfg *config.Config) (repository.SnapshotPublisher, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.SnapshotsTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewSnapshotPublisher(producer, cfg.Kafka.SnapshotsTopic), nil
}

// ProvideTrackedPairs parses the configured pairs and, if asked, adds the combinations
// saved on the backend.
func ProvideTrackedPairs(cfg *config.Config, client *internalrepo.BackendClient, log *logger.Logger) ([]models.PairKey, error) {
	var pairs []models.PairKey
	for _, s := range cfg.Dashboard.Pairs {
		p, ok := models.ParsePairKey(s)
		if !ok {
			return nil, fmt.Errorf("invalid pair %q", s)
		}
		pairs = append(pairs, p)
	}
	if !cfg.Dashboard.LoadSaved {
		return pairs, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
	defer cancel()
	saved, err := client.FetchSavedCombinations(ctx)
	if err != nil {
		if len(pairs) == 0 {
			return nil, fmt.Errorf("load saved combinations: %w", err)
		}
		log.Warn("load saved combinations, using configured pairs", logger.Error(err))
		return pairs, nil
	}
	log.Info("loaded saved combinations", logger.Int("count", len(saved)))
	return append(pairs, saved...), nil
}

func ProvidePairMonitor(
	source repository.PairSource,
	m repository.Metrics,
	log *logger.Logger,
	pairs []models.PairKey,
	store repository.SnapshotStore,
	pub repository.SnapshotPublisher,
	cfg *config.Config,
) *usecase.PairMonitor {
	opts := []usecase.PairMonitorOption{
		usecase.WithSnapshotStore(store),
		usecase.WithFetchTimeout(cfg.Dashboard.FetchTimeout),
	}
	if pub != nil {
		opts = append(opts, usecase.WithSnapshotPublisher(pub))
	}
	return usecase.NewPairMonitor(source, m, log.With(logger.String("component", "pair_monitor")), pairs, opts...)
}

func ProvideChartSync(series repository.SeriesSource, window repository.WindowConfig, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.ChartSync {
	opts := []bands.Option{
		bands.WithThresholdDefaults(cfg.Charts.EntryThreshold, cfg.Charts.ExitThreshold),
		bands.WithZScoreAxisLimit(cfg.Charts.ZScoreAxis),
	}
	zscore := bands.NewSynchronizer(models.SeriesZScore, bands.NewChart(models.SeriesZScore), opts...)
	spread := bands.NewSynchronizer(models.SeriesSpread, bands.NewChart(models.SeriesSpread), opts...)
	return usecase.NewChartSync(series, window, zscore, spread, m,
		log.With(logger.String("component", "chart_sync")),
		cfg.Dashboard.WindowSize, cfg.Dashboard.FetchTimeout)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Dashboard.RefreshLimit.Burst, cfg.Dashboard.RefreshLimit.PerSecond)
}

func ProvideDashboardHandler(log *logger.Logger, monitor *usecase.PairMonitor, charts *usecase.ChartSync, limiter *ratelimit.Limiter) *api.DashboardEchoHandler {
	return api.NewDashboardEchoHandler(log, monitor, charts, limiter)
}

func ProvideHub(log *logger.Logger, monitor *usecase.PairMonitor, charts *usecase.ChartSync) *stream.Hub {
	return stream.NewHub(log, monitor, charts)
}

func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, dash *api.DashboardEchoHandler, hub *stream.Hub) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, []xhttp.Handler{dash, hub},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Server.AllowOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideKafkaConsumer returns nil when Kafka or the results topic is off.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.ResultsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaResultsHandler(cfg *config.Config, monitor *usecase.PairMonitor, m repository.Metrics, log *logger.Logger) *usecase.KafkaResultsHandler {
	return usecase.NewKafkaResultsHandler(cfg.Kafka.ResultsTopic, monitor, m, log)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	monitor *usecase.PairMonitor,
	charts *usecase.ChartSync,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	results *usecase.KafkaResultsHandler,
	c cache.Service,
	pub repository.SnapshotPublisher,
) *server.App {
	app := server.New(cfg, log, monitor, charts, hub, limiter, httpServer)
	if consumer != nil {
		app.WithConsumer(consumer, results)
	}
	if pub != nil {
		app.OnClose(pub)
	}
	return app.OnClose(c)
}
