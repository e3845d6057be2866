package di

import (
	"context"
	"fmt"
	"time"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/domain/service"
	"NiftyEdge/internal/handler/api"
	internalrepo "NiftyEdge/internal/repository"
	"NiftyEdge/internal/service/ratelimit"
	"NiftyEdge/internal/services/thresholds"
	"NiftyEdge/internal/usecase"
	"NiftyEdge/pkg/cache"
	pkgch "NiftyEdge/pkg/clickhouse"
	"NiftyEdge/pkg/config"
	xhttp "NiftyEdge/pkg/http"
	pkgkafka "NiftyEdge/pkg/kafka"
	"NiftyEdge/pkg/logger"
	"NiftyEdge/pkg/metrics"
	"NiftyEdge/pkg/queue"
	"NiftyEdge/pkg/server"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects to Redis when enabled; otherwise it returns nil.
func ProvideRedisCache(cfg *config.Config, l *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisConnectTimeout(cfg.Redis.ConnectTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", logger.String("addr", rc.Client().Options().Addr))
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideCache layers an in-process cache over Redis, or uses memory alone without Redis.
func ProvideCache(rc *cache.RedisCache, cfg *config.Config) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
}

// ProvideLocker guards backtest runs with the cache's lock.
func ProvideLocker(c cache.Service) drepo.Locker {
	return c
}

// ProvideClickHouseClient connects and creates the bar tables when enabled.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithConnectTimeout(cfg.ClickHouse.ConnectTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarSchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected, schema ready", logger.String("database", client.Database()))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideBarStore returns nil when ClickHouse is disabled.
func ProvideBarStore(ch *pkgch.Client, l *logger.Logger) drepo.BarStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseBarStore(ch, l)
}

// ProvideKafkaProducer creates a producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", logger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideArtifactPublisher returns nil when Kafka is disabled.
func ProvideArtifactPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *logger.Logger) drepo.ArtifactPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaArtifactPublisher(producer, cfg.Kafka.Topic, l)
}

// ProvideArtifactStore writes the output directory and keeps the latest run in the cache.
func ProvideArtifactStore(cfg *config.Config, c cache.Service, l *logger.Logger) drepo.ArtifactStore {
	files := internalrepo.NewFileArtifactStore(cfg.Output.Dir, l)
	return internalrepo.NewCachedArtifactStore(files, c, cfg.Cache.ArtifactsTTL, l)
}

// ProvideSourceFactory opens input files for queued runs.
func ProvideSourceFactory(l *logger.Logger) usecase.SourceFactory {
	return func(path string, headerRow int) drepo.BarSource {
		return internalrepo.NewFileBarSource(path, headerRow, l)
	}
}

// ProvideHistorySource picks the bars served to historical checks.
func ProvideHistorySource(cfg *config.Config, bars drepo.BarStore, open usecase.SourceFactory) drepo.BarSource {
	if cfg.ClickHouse.HistorySource && bars != nil {
		return bars
	}
	return open(cfg.Input.Path, cfg.Input.HeaderRow)
}

// ProvideThresholdOptions maps the thresholds section, reading the frozen snapshot file if set.
func ProvideThresholdOptions(cfg *config.Config) (thresholds.Options, error) {
	opts := thresholds.Options{
		Mode:       service.ThresholdMode(cfg.Thresholds.Mode),
		Window:     cfg.Thresholds.Window,
		MinPeriods: cfg.Thresholds.MinPeriods,
	}
	if cfg.Thresholds.SnapshotFile != "" {
		th, err := internalrepo.ReadThresholdsFile(cfg.Thresholds.SnapshotFile)
		if err != nil {
			return thresholds.Options{}, fmt.Errorf("threshold snapshot: %w", err)
		}
		opts.Snapshot = th
	}
	return opts, nil
}

func ProvideBacktester(
	store drepo.ArtifactStore,
	bars drepo.BarStore,
	publisher drepo.ArtifactPublisher,
	m drepo.Metrics,
	l *logger.Logger,
) *usecase.Backtester {
	return usecase.NewBacktester(store, bars, publisher, m, l)
}

func ProvideSnapshotLoader(store drepo.ArtifactStore, history drepo.BarSource, l *logger.Logger) *usecase.SnapshotLoader {
	return usecase.NewSnapshotLoader(store, history, l)
}

func ProvideLiveClassifier(m drepo.Metrics) *usecase.LiveClassifier {
	return usecase.NewLiveClassifier(m)
}

func ProvideEdgeService(snaps *usecase.SnapshotLoader, live *usecase.LiveClassifier, m drepo.Metrics, l *logger.Logger) *usecase.EdgeService {
	return usecase.NewEdgeService(snaps, live, m, l)
}

// ProvideJobQueue creates the Redis job queue when enabled.
func ProvideJobQueue(rc *cache.RedisCache, cfg *config.Config, l *logger.Logger) *queue.RedisQueue {
	if rc == nil || !cfg.Queue.Enabled {
		return nil
	}
	return queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
}

// ProvideBacktestJob wires queued re-runs. Without a queue Schedule reports ErrQueueDisabled.
func ProvideBacktestJob(
	bt *usecase.Backtester,
	open usecase.SourceFactory,
	opts thresholds.Options,
	locker drepo.Locker,
	q *queue.RedisQueue,
	snaps *usecase.SnapshotLoader,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.BacktestJob {
	defaults := usecase.BacktestDefaults{
		Input:      cfg.Input.Path,
		HeaderRow:  cfg.Input.HeaderRow,
		Thresholds: opts,
	}
	var jq drepo.JobQueue
	if q != nil {
		jq = q
	}
	return usecase.NewBacktestJob(bt, open, defaults, locker, jq, snaps, l)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
}

func ProvideHTTPHandler(l *logger.Logger, edge *usecase.EdgeService, jobs *usecase.BacktestJob, limiter *ratelimit.Limiter) xhttp.Handler {
	return api.NewEdgeEchoHandler(l, edge, jobs, limiter)
}

func ProvideHTTPServer(h xhttp.Handler, cfg *config.Config, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.AllowOrigins...),
	)
}

// ProvideKafkaConsumer creates the reload consumer when Kafka and the consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideArtifactsHandler(cfg *config.Config, snaps *usecase.SnapshotLoader, m drepo.Metrics, l *logger.Logger) pkgkafka.MessageHandler {
	return usecase.NewArtifactsHandler(cfg.Kafka.Topic, snaps, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	snaps *usecase.SnapshotLoader,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	q *queue.RedisQueue,
	job *usecase.BacktestJob,
) *server.App {
	return server.New(cfg, l, srv, snaps, consumer, handler, q, job)
}

// ProvideBatchRun collects what the batch command needs for one run.
func ProvideBatchRun(cfg *config.Config, bt *usecase.Backtester, open usecase.SourceFactory, opts thresholds.Options) *BatchRun {
	return &BatchRun{
		Backtester: bt,
		Request: usecase.RunRequest{
			Source:     open(cfg.Input.Path, cfg.Input.HeaderRow),
			Thresholds: opts,
		},
	}
}

// BatchRun is one configured backtest, ready to execute.
type BatchRun struct {
	Backtester *usecase.Backtester
	Request    usecase.RunRequest
}

// Execute runs the backtest and returns the stored artifacts.
func (b *BatchRun) Execute(ctx context.Context) (*models.Artifacts, error) {
	return b.Backtester.Run(ctx, b.Request)
}
