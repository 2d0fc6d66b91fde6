package bootstrap

import (
	"context"
	"sync"

	"dcaadvisor/internal/adapters/ai"
	chclient "dcaadvisor/internal/adapters/clickhouse"
	"dcaadvisor/internal/adapters/config"
	"dcaadvisor/internal/adapters/kafka"
	pgclient "dcaadvisor/internal/adapters/postgres"
	redisclient "dcaadvisor/internal/adapters/redis"
	"dcaadvisor/internal/api"
	"dcaadvisor/internal/api/health"
	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/domain/session"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// Version is reported by the root endpoint and health checks
var Version = "dev"

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (each store is optional; nil when not configured)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Business    *Business
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups persistence
type Repositories struct {
	Session      session.Repository
	Portfolios   strategy.PortfolioStore
	PriceHistory market.HistoryRepository
}

// Adapters groups external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	PriceSource   market.PriceSource
	AIProviders   *ai.ProviderRegistry
}

// Business groups the advisor core
type Business struct {
	ToolRegistry *tools.Registry
	Sessions     *session.Service
	Advisor      *advisor.Service
}

// Application groups the HTTP surface
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitBusiness()
	c.MustInitApplication()
}

// Start runs the HTTP server in the background
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// GetMetrics returns a summary for the startup log
func (c *Container) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"tools":     len(c.Business.ToolRegistry.Names()),
		"providers": len(c.Adapters.AIProviders.List()),
	}
}
