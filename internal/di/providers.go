package di

import (
	"context"
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
	domrepo "SignalPilot/internal/domain/repository"
	domsvc "SignalPilot/internal/domain/service"
	"SignalPilot/internal/handler/api"
	"SignalPilot/internal/handler/ws"
	"SignalPilot/internal/middleware"
	internalrepo "SignalPilot/internal/repository"
	"SignalPilot/internal/scheduler"
	"SignalPilot/internal/services/classifier"
	"SignalPilot/internal/services/indicators"
	"SignalPilot/internal/services/upstream"
	"SignalPilot/internal/usecase"
	"SignalPilot/pkg/cache"
	pkgch "SignalPilot/pkg/clickhouse"
	"SignalPilot/pkg/config"
	xhttp "SignalPilot/pkg/http"
	pkgkafka "SignalPilot/pkg/kafka"
	applogger "SignalPilot/pkg/logger"
	"SignalPilot/pkg/metrics"
	"SignalPilot/pkg/postgres"
	"SignalPilot/pkg/server"
	"SignalPilot/pkg/sqlite"

	"github.com/shopspring/decimal"
)

const initTimeout = 15 * time.Second

// Storage is the audit and history backend selected by backend.type.
type Storage struct {
	Audit     domrepo.AuditStore
	History   domrepo.SignalHistoryStore
	Decisions api.DecisionReader
	Ping      api.HealthCheck
}

// OrderBackend holds order persistence and the user directory.
type OrderBackend struct {
	Orders domrepo.OrderStore
	Users  domrepo.UserDirectory
	Ping   api.HealthCheck
}

// ProvideLogger creates the application logger. Warn and error entries are
// aggregated to Kafka when a collect topic and brokers are configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.CollectInterval,
			Topic:        cfg.Log.CollectTopic,
			Publisher:    producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.New()
}

// ProvideCache returns a memory-fronted Redis cache when Redis is enabled,
// otherwise a process-local cache.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(10_000))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(5*time.Second))
	return lc, func() { _ = lc.Close() }, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are set.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideStorage opens the audit backend named by backend.type.
func ProvideStorage(cfg *config.Config, l *applogger.Logger) (*Storage, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	switch cfg.Backend.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		if err := client.InitSchema(ctx, internalrepo.ClickHouseDialect.Schema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		store := internalrepo.NewSQLAuditStore(client.DB(), internalrepo.ClickHouseDialect)
		store.SetLogger(l)
		return sqlStorage(store, client.Health), func() { _ = client.Close() }, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.InitSchema(ctx, db, internalrepo.SQLiteDialect.Schema); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("sqlite schema: %w", err)
		}
		store := internalrepo.NewSQLAuditStore(db, internalrepo.SQLiteDialect)
		store.SetLogger(l)
		return sqlStorage(store, db.PingContext), func() { _ = db.Close() }, nil

	default:
		l.Warn("audit backend disabled, history is kept in memory")
		return &Storage{History: internalrepo.NewMemoryHistoryStore(cfg.Decision.HistoryLimit * 10)}, func() {}, nil
	}
}

func sqlStorage(store *internalrepo.SQLAuditStore, ping api.HealthCheck) *Storage {
	return &Storage{Audit: store, History: store, Decisions: store, Ping: ping}
}

// ProvideOrderBackend uses Postgres when a DSN is configured, otherwise
// in-memory orders and the configured user seeds.
func ProvideOrderBackend(cfg *config.Config, l *applogger.Logger) (*OrderBackend, func(), error) {
	if cfg.Postgres.DSN == "" {
		users := make([]models.UserProfile, 0, len(cfg.Users))
		for _, u := range cfg.Users {
			users = append(users, models.UserProfile{
				ID:           u.ID,
				Tier:         u.Tier,
				Leverage:     u.Leverage,
				TradeAmount:  decimal.NewFromFloat(u.TradeAmount),
				MaxPositions: u.MaxPositions,
			})
		}
		l.Info("order store in memory", applogger.Int("users", len(users)))
		return &OrderBackend{
			Orders: internalrepo.NewMemoryOrderStore(),
			Users:  internalrepo.NewMemoryUserDirectory(users...),
		}, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, postgres.WithMaxConns(cfg.Postgres.MaxConns, 2))
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, pool, internalrepo.PostgresSchema); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return &OrderBackend{
		Orders: internalrepo.NewPgOrderStore(pool),
		Users:  internalrepo.NewPgUserDirectory(pool),
		Ping:   pool.Ping,
	}, pool.Close, nil
}

func ProvideHub(l *applogger.Logger) (*ws.Hub, func()) {
	h := ws.NewHub(l)
	return h, h.Close
}

// ProvideNotificationSink fans events out to websocket clients and, when
// Kafka is configured, to the events topic.
func ProvideNotificationSink(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer) domrepo.NotificationSink {
	sinks := internalrepo.MultiSink{hub}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaSink(producer, cfg.Kafka.EventsTopic))
	}
	return sinks
}

func ProvideMarketData(cfg *config.Config) indicators.MarketData {
	return indicators.NewBinanceMarket(cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.Testnet)
}

func ProvideIndicatorFeed(cfg *config.Config, market indicators.MarketData) domsvc.IndicatorFeed {
	sentiment := indicators.NewSentimentClient(cfg.Monitor.SentimentURL, cfg.Monitor.FetchTimeout)
	breadth := indicators.NewBreadthCalculator(market, cfg.Monitor.BreadthBasket, cfg.Monitor.BasketSize)
	return indicators.NewFeed(sentiment, breadth)
}

func ProvideMarketMonitor(
	cfg *config.Config,
	feed domsvc.IndicatorFeed,
	m domrepo.Metrics,
	storage *Storage,
	sink domrepo.NotificationSink,
	l *applogger.Logger,
) *usecase.MarketMonitor {
	opts := []usecase.MonitorOption{
		usecase.WithMonitorInterval(cfg.Monitor.Interval),
		usecase.WithHistorySize(cfg.Monitor.HistorySize),
		usecase.WithFetchTimeout(cfg.Monitor.FetchTimeout),
		usecase.WithMonitorSink(sink),
		usecase.WithMonitorLogger(l.With(applogger.String("component", "monitor"))),
	}
	if storage.Audit != nil {
		opts = append(opts, usecase.WithMonitorAudit(storage.Audit))
	}
	return usecase.NewMarketMonitor(feed, m, opts...)
}

func ProvideOscillator(cfg *config.Config, market indicators.MarketData, c cache.Service) domsvc.AssetOscillator {
	rsi := indicators.NewRSIOscillator(market, cfg.Decision.OscillatorPeriod, cfg.Decision.OscillatorInterval, "USDT")
	return indicators.NewCachedOscillator(rsi, c, cfg.Decision.OscillatorCacheTTL)
}

// ProvideReasoner returns nil when the reasoner is disabled.
func ProvideReasoner(cfg *config.Config) domsvc.AiReasoner {
	if !cfg.Reasoner.Enabled {
		return nil
	}
	base := upstream.NewHTTPServiceBase(cfg.Reasoner.ProviderURL, cfg.Reasoner.Timeout, cfg.Reasoner.APIKey)
	return upstream.NewLLMReasoner(base, cfg.Reasoner.Model)
}

func ProvideAccountValidator(cfg *config.Config, l *applogger.Logger) domsvc.AccountValidator {
	if cfg.Accounts.ServiceURL == "" {
		l.Warn("no account service configured, using paper accounts")
		return upstream.PaperAccounts{}
	}
	base := upstream.NewHTTPServiceBase(cfg.Accounts.ServiceURL, cfg.Accounts.Timeout, cfg.Accounts.APIKey)
	return upstream.NewAccountClient(base)
}

func ProvideDecisionEngine(
	cfg *config.Config,
	monitor *usecase.MarketMonitor,
	storage *Storage,
	oscillator domsvc.AssetOscillator,
	reasoner domsvc.AiReasoner,
	sink domrepo.NotificationSink,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.DecisionEngine {
	dc := usecase.DecisionConfig{
		Freshness:       cfg.Decision.Freshness,
		StrongFreshness: cfg.Decision.StrongFreshness,
		HistoryLimit:    cfg.Decision.HistoryLimit,
		HistoryWindow:   cfg.Decision.HistoryWindow,
		MomentumUpper:   cfg.Decision.MomentumUpper,
		MomentumLower:   cfg.Decision.MomentumLower,
		ReasonerTimeout: cfg.Reasoner.Timeout,
	}
	opts := []usecase.DecisionOption{
		usecase.WithOscillator(oscillator),
		usecase.WithDecisionSink(sink),
		usecase.WithDecisionLogger(l.With(applogger.String("component", "decision"))),
	}
	if reasoner != nil {
		opts = append(opts, usecase.WithReasoner(reasoner))
	}
	if storage.Audit != nil {
		opts = append(opts, usecase.WithDecisionAudit(storage.Audit))
	}
	return usecase.NewDecisionEngine(dc, monitor, storage.History, m, opts...)
}

func ProvideProtection(cfg *config.Config) *usecase.ProtectionCalculator {
	return usecase.NewProtectionCalculator(models.Multipliers{
		StopLoss:      cfg.Protection.SLMultiplier,
		TakeProfit:    cfg.Protection.TPMultiplier,
		MaxStopLoss:   cfg.Protection.MaxSLMultiplier,
		MaxTakeProfit: cfg.Protection.MaxTPMultiplier,
	})
}

func ProvideTickerLedger(c cache.Service) domrepo.TickerLedger {
	return internalrepo.NewCacheTickerLedger(c)
}

func ProvideFanoutExecutor(
	cfg *config.Config,
	backend *OrderBackend,
	accounts domsvc.AccountValidator,
	ledger domrepo.TickerLedger,
	protection *usecase.ProtectionCalculator,
	storage *Storage,
	sink domrepo.NotificationSink,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.FanoutExecutor {
	ec := usecase.ExecutorConfig{
		MaxWorkers:      cfg.Executor.MaxWorkers,
		UserTimeout:     cfg.Executor.UserTimeout,
		LockTTL:         cfg.Executor.LockTTL,
		ReserveTTL:      cfg.Executor.ReserveTTL,
		MinNotional:     decimal.NewFromFloat(cfg.Executor.MinNotional),
		DefaultLeverage: cfg.Executor.DefaultLeverage,
	}
	opts := []usecase.ExecutorOption{
		usecase.WithExecutorSink(sink),
		usecase.WithExecutorLogger(l.With(applogger.String("component", "executor"))),
	}
	if storage.Audit != nil {
		opts = append(opts, usecase.WithExecutorAudit(storage.Audit))
	}
	return usecase.NewFanoutExecutor(ec, backend.Users, accounts, ledger, protection, backend.Orders, storage.History, m, opts...)
}

func ProvideClassifier(cfg *config.Config) domsvc.SignalClassifier {
	return classifier.New(classifier.Keywords{Long: cfg.Classifier.LongKeywords, Short: cfg.Classifier.ShortKeywords})
}

func ProvideSignalPipeline(
	cls domsvc.SignalClassifier,
	engine *usecase.DecisionEngine,
	executor *usecase.FanoutExecutor,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(cls, engine, executor, m,
		usecase.WithPipelineLogger(l.With(applogger.String("component", "pipeline"))))
}

func ProvideSignalIntake(cfg *config.Config, pipeline *usecase.SignalPipeline, m domrepo.Metrics, l *applogger.Logger) *middleware.SignalIntake {
	return middleware.NewSignalIntake(pipeline, m,
		middleware.WithTickerRate(float64(cfg.Intake.Burst), cfg.Intake.RefillPerS),
		middleware.WithDedupWindow(cfg.Intake.DedupWindow),
		middleware.WithRetryBuffer(cfg.Intake.RetryBuffer),
		middleware.WithRetryMaxAge(cfg.Intake.RetryMaxAge),
		middleware.WithIntakeLogger(l.With(applogger.String("component", "intake"))),
	)
}

func ProvideOrderLifecycle(backend *OrderBackend, sink domrepo.NotificationSink, m domrepo.Metrics, l *applogger.Logger) *usecase.OrderLifecycle {
	return usecase.NewOrderLifecycle(backend.Orders, m,
		usecase.WithLifecycleSink(sink),
		usecase.WithLifecycleLogger(l.With(applogger.String("component", "lifecycle"))))
}

func ProvideScheduler(cfg *config.Config, monitor *usecase.MarketMonitor, c cache.Service, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(monitor, c, cfg.Monitor.Interval, l.With(applogger.String("component", "scheduler")))
}

// ProvideKafkaConsumer creates the inbound signal consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka_consumer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.LoggingHook(l, time.Second),
	))
	return consumer, nil
}

func ProvideKafkaSignalsHandler(cfg *config.Config, intake *middleware.SignalIntake, m domrepo.Metrics, l *applogger.Logger) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, intake, m, l.With(applogger.String("component", "kafka_signals")))
}

// ProvideHTTPServer registers every HTTP surface on one Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	intake *middleware.SignalIntake,
	monitor *usecase.MarketMonitor,
	lifecycle *usecase.OrderLifecycle,
	storage *Storage,
	backend *OrderBackend,
	c cache.Service,
	hub *ws.Hub,
) *xhttp.Server {
	checks := map[string]api.HealthCheck{
		"cache": func(ctx context.Context) error {
			_, err := c.Exists(ctx, "health")
			return err
		},
	}
	if storage.Ping != nil {
		checks["audit"] = storage.Ping
	}
	if backend.Ping != nil {
		checks["orders"] = backend.Ping
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{
		api.NewHealthHandler(checks),
		api.NewSignalsHandler(l, intake, storage.Decisions),
		api.NewMarketHandler(monitor),
		api.NewOrdersHandler(l, lifecycle),
		hub,
	},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithServerLogger(l.With(applogger.String("component", "http"))),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	intake *middleware.SignalIntake,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, l, sched, intake, consumer, kh, httpServer)
}
