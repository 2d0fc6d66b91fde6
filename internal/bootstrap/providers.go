package bootstrap

import (
	"context"
	"time"

	"dcaadvisor/internal/adapters/ai"
	chclient "dcaadvisor/internal/adapters/clickhouse"
	"dcaadvisor/internal/adapters/config"
	errnoop "dcaadvisor/internal/adapters/errors/noop"
	"dcaadvisor/internal/adapters/errors/sentry"
	"dcaadvisor/internal/adapters/kafka"
	"dcaadvisor/internal/adapters/marketdata"
	pgclient "dcaadvisor/internal/adapters/postgres"
	redisclient "dcaadvisor/internal/adapters/redis"
	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/api"
	"dcaadvisor/internal/api/health"
	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/domain/session"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/internal/events"
	"dcaadvisor/internal/metrics"
	chrepo "dcaadvisor/internal/repository/clickhouse"
	"dcaadvisor/internal/repository/memory"
	pgrepo "dcaadvisor/internal/repository/postgres"
	redisrepo "dcaadvisor/internal/repository/redis"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
	advisortools "dcaadvisor/internal/tools/advisor"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the configured data stores. Each store is
// optional; the advisor falls back to in-memory state without them.
func (c *Container) MustInitInfrastructure() {
	var err error
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		if c.PG, err = pgclient.NewClient(c.Config.Postgres); err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		if err := c.PG.Migrate(ctx); err != nil {
			c.Log.Fatalf("failed to migrate postgres: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		if c.CH, err = chclient.NewClient(c.Config.ClickHouse); err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		if err := c.CH.Migrate(ctx); err != nil {
			c.Log.Fatalf("failed to migrate clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		if c.Redis, err = redisclient.NewClient(c.Config.Redis); err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories picks a backend for each store
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Session = pgrepo.NewSessionRepository(c.PG.DB())
	} else {
		c.Repos.Session = memory.NewSessionRepository()
	}

	if c.Redis != nil {
		c.Repos.Portfolios = redisrepo.NewPortfolioStore(c.Redis, 0)
	} else {
		c.Repos.Portfolios = memory.NewPortfolioStore()
	}

	if c.CH != nil && c.Config.Market.HistoryStore == "clickhouse" {
		c.Repos.PriceHistory = chrepo.NewPriceHistoryRepository(c.CH.Conn(), c.Config.Market.Source)
	}

	c.Log.Infow("✓ Repositories initialized",
		"sessions", backendName(c.PG != nil, "postgres"),
		"portfolios", backendName(c.Redis != nil, "redis"),
		"price_history", c.Repos.PriceHistory != nil,
	)
}

func backendName(enabled bool, name string) string {
	if enabled {
		return name
	}
	return "memory"
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters builds the price source, AI backends and Kafka producer
func (c *Container) MustInitAdapters() {
	src, err := marketdata.New(c.Config.Market, marketdata.Deps{
		Catalog: market.DefaultCatalog(),
		Redis:   c.Redis,
		History: c.Repos.PriceHistory,
	})
	if err != nil {
		c.Log.Fatalf("failed to build price source: %v", err)
	}
	c.Adapters.PriceSource = src

	c.Adapters.AIProviders, err = ai.BuildRegistry(c.Context, c.Config.AI, c.Config.Agent.ProviderTimeout)
	if err != nil {
		c.Log.Fatalf("failed to build AI providers: %v", err)
	}

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers})
		c.Log.Infow("✓ Kafka producer ready", "brokers", c.Config.Kafka.Brokers, "topic", c.Config.Kafka.TurnsTopic)
	}
}

// ========================================
// Phase 5: Advisor core
// ========================================

// MustInitBusiness registers the tools and builds the advisor service
func (c *Container) MustInitBusiness() {
	calculator, risk := provideStrategy(c.Config.Strategy)

	c.Business.ToolRegistry = tools.NewRegistry()
	err := advisortools.Register(c.Business.ToolRegistry, advisortools.Deps{
		Prices:            c.Adapters.PriceSource,
		Catalog:           market.DefaultCatalog(),
		Calculator:        calculator,
		Risk:              risk,
		Portfolios:        c.Repos.Portfolios,
		DefaultAssetCount: c.Config.Strategy.DefaultAssetCount,
	}, advisortools.Options{
		Retries: c.Config.Agent.ToolRetries,
		Backoff: 200 * time.Millisecond,
		Metrics: true,
	})
	if err != nil {
		c.Log.Fatalf("failed to register tools: %v", err)
	}

	c.Business.Sessions = session.NewService(c.Repos.Session, c.Config.Agent.MaxHistory)

	observers := []agent.Observer{advisor.MetricsObserver{}}
	if c.Adapters.KafkaProducer != nil {
		observers = append(observers, events.NewTurnPublisher(c.Adapters.KafkaProducer, c.Config.Kafka.TurnsTopic))
	}

	strategy, err := agent.ParseProviderStrategy(c.Config.AI.ProviderStrategy)
	if err != nil {
		c.Log.Fatalf("Invalid AI provider strategy: %v", err)
	}
	source := advisor.NewRegistrySource(c.Adapters.AIProviders, ai.ChatAgentConfig{
		Temperature: c.Config.AI.Temperature,
	}, advisor.ChainConfig{
		Strategy:  strategy,
		Fallbacks: c.Config.AI.FallbackProviders,
	})
	c.Business.Advisor = advisor.NewService(
		c.Business.Sessions,
		source,
		c.Business.ToolRegistry,
		provideAgentConfig(c.Config.Agent),
		observers...,
	)

	c.Log.Infow("✓ Advisor ready", "tools", c.Business.ToolRegistry.Names(), "observers", len(observers))
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	h := health.New(c.Log, c.Config.App.Name, Version)
	if c.PG != nil {
		h.Register("postgres", c.PG)
	}
	if c.CH != nil {
		h.Register("clickhouse", c.CH)
	}
	if c.Redis != nil {
		h.Register("redis", c.Redis)
	}
	c.Application.HealthHandler = h

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:           c.Config.HTTP.Port,
		ServiceName:    c.Config.App.Name,
		Version:        Version,
		ReadTimeout:    c.Config.HTTP.ReadTimeout,
		WriteTimeout:   c.Config.HTTP.WriteTimeout,
		AllowedOrigins: c.Config.HTTP.AllowedOrigins,
		WSPingInterval: c.Config.HTTP.WSPingInterval,
		WSPongTimeout:  c.Config.HTTP.WSPongTimeout,
	}, h, c.Business.Advisor, c.Log)
}

// ========================================
// Helpers
// ========================================

// provideErrorTracker returns Sentry when configured, otherwise a no-op tracker
func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideAgentConfig(cfg config.AgentConfig) agent.Config {
	return agent.Config{
		MaxIterations:   cfg.MaxIterations,
		ProviderRetries: cfg.ProviderRetries,
		ProviderBackoff: cfg.ProviderBackoff,
		ProviderTimeout: cfg.ProviderTimeout,
		ToolTimeout:     cfg.ToolTimeout,
	}
}

// provideStrategy turns the configured weights and bands into the strategy
// engine. Config.Validate has already checked the slice lengths.
func provideStrategy(cfg config.StrategyConfig) (*strategy.Calculator, *strategy.RiskAnalyzer) {
	tiers := []market.Tier{market.TierBlueChip, market.TierLargeCap, market.TierMidCap, market.TierSpeculative}
	table := func(weights []float64) strategy.TierTable {
		t := make(strategy.TierTable, len(tiers))
		for i, tier := range tiers {
			if i < len(weights) {
				t[tier] = weights[i]
			}
		}
		return t
	}

	tables := strategy.DefaultTables()
	tables[strategy.Conservative] = table(cfg.Conservative)
	tables[strategy.Balanced] = table(cfg.Balanced)
	tables[strategy.Aggressive] = table(cfg.Aggressive)

	thresholds := strategy.DefaultRiskThresholds()
	copy(thresholds.Volatility[:], cfg.VolatilityBands)
	copy(thresholds.Drawdown[:], cfg.DrawdownBands)

	return strategy.NewCalculator(tables), strategy.NewRiskAnalyzer(thresholds)
}
