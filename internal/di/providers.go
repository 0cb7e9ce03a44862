package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"WaveScan/internal/domain/models"
	"WaveScan/internal/domain/repository"
	domsvc "WaveScan/internal/domain/service"
	"WaveScan/internal/handler/api"
	"WaveScan/internal/handler/ws"
	mid "WaveScan/internal/middleware"
	internalrepo "WaveScan/internal/repository"
	svccache "WaveScan/internal/service/cache"
	"WaveScan/internal/service/quote"
	"WaveScan/internal/services/structure"
	"WaveScan/internal/usecase"
	pkgcache "WaveScan/pkg/cache"
	pkgch "WaveScan/pkg/clickhouse"
	"WaveScan/pkg/config"
	pkgkafka "WaveScan/pkg/kafka"
	applogger "WaveScan/pkg/logger"
	"WaveScan/pkg/metrics"
	"WaveScan/pkg/queue"
	"WaveScan/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the shared structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideResultStore creates the ClickHouse scan result store and its table.
func ProvideResultStore(chClient *pkgch.Client, l *applogger.Logger) (repository.ResultStore, error) {
	store := internalrepo.NewClickHouseResultStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}
	return store, nil
}

// ProvideEventPublisher creates the Kafka scan event publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaScanHandler registers the handler for the scan request topic.
func ProvideKafkaScanHandler(screener *usecase.ScreenerUseCase, m repository.Metrics, cfg *config.Config) *usecase.KafkaScanHandler {
	return usecase.NewKafkaScanHandler(cfg.Kafka.ScanTopic, screener, m)
}

// ProvideCandleSource creates the quote REST client for daily history.
func ProvideCandleSource(cfg *config.Config) repository.CandleSource {
	return quote.NewClient(quote.Options{
		BaseURL:       cfg.Quote.BaseURL,
		APIKey:        cfg.Quote.APIKey,
		RatePerMinute: cfg.Quote.RatePerMinute,
		Timeout:       cfg.Quote.Timeout,
		MaxRetries:    cfg.Quote.MaxRetries,
	})
}

// ProvideQuoteStream creates the quote WebSocket stream.
func ProvideQuoteStream(cfg *config.Config) repository.QuoteStream {
	return quote.NewStream(
		cfg.Quote.APIKey,
		cfg.Quote.WebSocketURL,
		cfg.Quote.ReconnectDelay,
		cfg.Quote.PingInterval,
	)
}

// ProvideEngines builds one engine per supported scoring version.
func ProvideEngines() (map[string]domsvc.StructureAnalyzer, error) {
	v2, err := structure.NewEngine(structure.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", structure.VersionV02, err)
	}
	v1, err := structure.NewEngine(structure.DefaultParams().WithVersion(structure.VersionV01))
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", structure.VersionV01, err)
	}
	return map[string]domsvc.StructureAnalyzer{
		structure.VersionV02: v2,
		structure.VersionV01: v1,
	}, nil
}

// ProvideCache picks redis or in-process byte caching from config. It backs
// prefilter memoization and handler response caching.
func ProvideCache(cfg *config.Config) svccache.BytesCache {
	if cfg.Cache.Redis.Enabled {
		return svccache.NewRedisCache(svccache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return svccache.NewTTLCache()
}

// ProvideCandleCache builds the candle store selected by cache.mode. The
// layered mode keeps an in-process LRU in front of redis.
func ProvideCandleCache(cfg *config.Config) (pkgcache.Service, error) {
	switch cfg.Cache.Mode {
	case "", "memory":
		var opts []pkgcache.MemoryOption
		if ttl := cfg.Cache.CandleTTL; ttl > 0 {
			// Align the janitor with the candle TTL; zero keeps the
			// default cadence.
			opts = append(opts, pkgcache.WithMemoryCleanup(ttl))
		}
		return pkgcache.NewMemoryCache(opts...), nil
	case "redis", "layered":
		host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
		if err != nil {
			return nil, fmt.Errorf("cache.redis.addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("cache.redis.addr port: %w", err)
		}
		opts := []pkgcache.RedisOption{
			pkgcache.WithRedisHost(host),
			pkgcache.WithRedisPort(port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix("wavescan:" + cfg.Environment),
		}
		// One pooled connection per scan worker, plus headroom for the
		// handlers.
		if n := cfg.Screener.Concurrency; n > 10 {
			opts = append(opts, pkgcache.WithRedisPool(n+4, 5, 30*time.Second))
		}
		rc, err := pkgcache.NewRedisCache(opts...)
		if err != nil {
			return nil, fmt.Errorf("candle cache redis: %w", err)
		}
		if cfg.Cache.Mode == "layered" {
			// Room for a few timeframe variants per symbol so a scan
			// does not evict its own working set.
			size := 4 * len(cfg.Quote.Symbols)
			if size < 1000 {
				size = 1000
			}
			return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(size)), nil
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache.mode %q", cfg.Cache.Mode)
	}
}

// ProvideCandlesUseCase creates the cached candle fetcher.
func ProvideCandlesUseCase(source repository.CandleSource, cache pkgcache.Service, cfg *config.Config) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(source, cache, cfg.Cache.CandleTTL)
}

// ProvidePrefilterUseCase creates the per-symbol scoring use case.
func ProvidePrefilterUseCase(
	candles *usecase.CandlesUseCase,
	engines map[string]domsvc.StructureAnalyzer,
	cache svccache.BytesCache,
	cfg *config.Config,
) *usecase.PrefilterUseCase {
	version := cfg.Engine.Version
	if version == "" {
		version = structure.VersionV02
	}
	return usecase.NewPrefilterUseCase(candles, engines, version, cache, cfg.Cache.PrefilterTTL)
}

// ProvideResultProcessor creates the backend router for finished results.
func ProvideResultProcessor(
	pub repository.Publisher,
	store repository.ResultStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ResultProcessor {
	return usecase.NewResultProcessor(
		pub,
		store,
		m,
		cfg.Backend.Type,
	)
}

// ProvideResultPipeline buffers scan results between the screener and the
// backends so a slow sink never stalls a scan. Retry flushes drain in
// backend-sized batches.
func ProvideResultPipeline(proc *usecase.ResultProcessor, m repository.Metrics, cfg *config.Config) *mid.ResultPipeline {
	return mid.NewResultPipeline(proc, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
		mid.WithBatching(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
	)
}

// ProvideScreenerUseCase creates the universe screener.
func ProvideScreenerUseCase(
	prefilter *usecase.PrefilterUseCase,
	pipeline *mid.ResultPipeline,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.ScreenerUseCase {
	return usecase.NewScreenerUseCase(
		prefilter,
		pipeline,
		m,
		cfg.Quote.Symbols,
		cfg.Screener.Concurrency,
		cfg.Engine.DefaultDays,
	)
}

// ProvideHub creates the WebSocket broadcast hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideCageWatcher wires live cage-break alerts to the hub. The break
// threshold matches the engine's own.
func ProvideCageWatcher(stream repository.QuoteStream, m repository.Metrics, hub *ws.Hub) *usecase.CageWatcher {
	minStrength := structure.DefaultParams().BreakStrengthATR
	return usecase.NewCageWatcher(stream, m, minStrength, func(a models.CageAlert) {
		hub.Broadcast(ws.ChannelAlerts, a)
	})
}

// ProvideScanScheduler creates the periodic scan loop. After each run it
// pushes the summary to dashboard clients and retargets the cage watcher at
// the current leaders.
func ProvideScanScheduler(
	screener *usecase.ScreenerUseCase,
	prefilter *usecase.PrefilterUseCase,
	watcher *usecase.CageWatcher,
	hub *ws.Hub,
	candleCache pkgcache.Service,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ScanScheduler {
	s := usecase.NewScanScheduler(screener, cfg.Screener.ScanInterval, cfg.Engine.DefaultDays, cfg.Engine.Version)
	s.SetLock(candleCache)
	s.SetAfterScan(func(ctx context.Context, sum *models.ScanSummary) {
		hub.Broadcast(ws.ChannelScans, sum)
		if !cfg.Watch.Enabled {
			return
		}
		atrOf := func(symbol string) float64 {
			// Candles are still cached from the scan, so this is cheap.
			a, err := prefilter.Analyze(ctx, symbol, cfg.Engine.DefaultDays, "")
			if err != nil {
				return 0
			}
			return a.ATR
		}
		tracked := watcher.TrackTop(sum.Results, cfg.Watch.TopN, atrOf)
		if err := watcher.Resubscribe(ctx); err != nil {
			l.Warn("watch resubscribe failed", applogger.Error(err))
			return
		}
		l.Info("watch list updated", applogger.Int("tracked", len(tracked)))
	})
	return s
}

// ProvideJobQueue creates the redis-backed scan queue, or nil when disabled.
// It shares the cache redis instance.
func ProvideJobQueue(screener *usecase.ScreenerUseCase, l *applogger.Logger, cfg *config.Config) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	mode := queue.ModeProducerConsumer
	switch cfg.Queue.Mode {
	case "producer":
		mode = queue.ModeProducerOnly
	case "consumer":
		mode = queue.ModeConsumerOnly
	}

	retryLimit := cfg.Queue.RetryLimit
	if retryLimit <= 0 {
		retryLimit = 3
	}
	retryDelay := cfg.Queue.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: retryLimit,
		RetryDelay: retryDelay,
	}, client, mode, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJob(usecase.NewScanJob(screener))
	q.RegisterJob(usecase.NewLogDrainJob(cfg.Log.Collector.Topic, l))
	return q
}

// ProvideOpsHandler creates the plain-HTTP operational endpoints.
func ProvideOpsHandler(
	prefilter *usecase.PrefilterUseCase,
	screener *usecase.ScreenerUseCase,
	store repository.ResultStore,
	cache svccache.BytesCache,
	candleCache pkgcache.Service,
	jobQueue *queue.RedisQueue,
	l *applogger.Logger,
) *api.StructureHandler {
	h := api.NewStructureHandler(prefilter, screener)
	h.SetStore(store)
	h.SetCache(cache)
	h.SetCandleCache(candleCache)
	h.SetLogger(l)
	if jobQueue != nil {
		h.SetQueue(jobQueue)
	}
	return h
}

// ProvideHTTPHandler creates the /api/v1 echo handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	prefilter *usecase.PrefilterUseCase,
	screener *usecase.ScreenerUseCase,
	store repository.ResultStore,
	jobQueue *queue.RedisQueue,
) *api.StructureEchoHandler {
	h := api.NewStructureEchoHandler(l, prefilter, screener)
	h.SetStore(store)
	if jobQueue != nil {
		h.SetQueue(jobQueue)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.StructureEchoHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaScanHandler,
	chClient *pkgch.Client,
	ops *api.StructureHandler,
	hub *ws.Hub,
	scheduler *usecase.ScanScheduler,
	watcher *usecase.CageWatcher,
	pipeline *mid.ResultPipeline,
	jobQueue *queue.RedisQueue,
	candleCache pkgcache.Service,
	processor *usecase.ResultProcessor,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewTracingHook(l))
	}
	if cfg.Log.Collector.Enabled && jobQueue != nil {
		interval := cfg.Log.Collector.Interval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		threshold := cfg.Log.Collector.Threshold
		if threshold <= 0 {
			threshold = 100
		}
		topic := cfg.Log.Collector.Topic
		if topic == "" {
			topic = usecase.LogDrainJobType
		}
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   interval,
			CountThreshold: threshold,
			Topic:          topic,
			Publisher:      jobQueue,
		})
	}
	app := server.New(cfg, handler, consumer, kh, chClient)
	app.SetLogger(l)
	app.SetOpsHandler(ops)
	app.SetHub(hub)
	app.SetScheduler(scheduler)
	app.SetPipeline(pipeline)
	if cfg.Watch.Enabled {
		app.SetWatcher(watcher)
	}
	if jobQueue != nil {
		app.SetJobQueue(jobQueue)
	}
	app.SetCandleCache(candleCache)
	app.Processor = processor
	return app
}
