package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drone-flight/registry/internal/agent"
	"drone-flight/registry/internal/common"
	"drone-flight/registry/internal/config"
	"drone-flight/registry/internal/db"
	"drone-flight/registry/internal/db/repositories"
	"drone-flight/registry/internal/ledger"
	"drone-flight/registry/internal/logging"
	"drone-flight/registry/internal/metrics"
	"drone-flight/registry/internal/services"
	"drone-flight/registry/internal/validation"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Repositories struct {
	Ledger *repositories.LedgerRepository // nil for the memory store
	Index  *repositories.FlightEventIndex // nil without postgres
}

type Services struct {
	Ledger       *ledger.Ledger
	Registration *services.RegistrationService
	Validation   *validation.Service
	Agent        *agent.Dispatcher
	EventHub     *common.EventHub
	Stream       *common.RedisStreamService // nil without redis
	Archive      *common.ArchiveService     // nil without an archive endpoint
	GeocodeCache *common.CacheService
}

type Dependencies struct {
	Config   *config.Config
	Metrics  *metrics.MetricsRegistry
	Repo     *Repositories
	Services *Services

	closers []func() error
}

// InitDependencies wires storage, the ledger and every service from cfg.
func InitDependencies(ctx context.Context, cfg *config.Config, metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Metrics:  metricsReg,
		Repo:     &Repositories{},
		Services: &Services{},
	}

	store, err := deps.initLedgerStore(ctx)
	if err != nil {
		deps.Close()
		return nil, err
	}

	l, err := ledger.New(ctx, store, ledger.Options{
		ChainID:      cfg.ChainID,
		Address:      cfg.Ledger.Address,
		ReceiptCache: cfg.Ledger.ReceiptCache,
	})
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Services.Ledger = l
	metricsReg.LedgerCounter.Set(float64(l.DroneID(ctx)))

	// sinks, in delivery order
	l.Subscribe(ledger.SinkFunc(func(_ context.Context, ev ledger.Event) error {
		metricsReg.RegistrationsTotal.WithLabelValues(ev.Name).Inc()
		metricsReg.LedgerCounter.Set(float64(ev.FlightID))
		return nil
	}))
	deps.Services.EventHub = common.NewEventHub(64)
	l.Subscribe(deps.Services.EventHub)

	if cfg.Redis.Addr != "" {
		client := common.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		deps.closers = append(deps.closers, client.Close)
		deps.Services.Stream = common.NewRedisStreamService(client, cfg.Redis.Stream, cfg.Redis.MaxLen)
		l.Subscribe(deps.Services.Stream)
	}

	if cfg.Postgres.DSN != "" && cfg.Redis.Addr != "" {
		indexDB, err := db.ConnectIndex(cfg.Postgres.DSN)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, indexDB.Close)
		if err := deps.initIndex(ctx, indexDB); err != nil {
			deps.Close()
			return nil, err
		}
	}

	if cfg.Archive.Enabled {
		archive, err := common.NewArchiveService(common.ArchiveConfig{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.Services.Archive = archive
	}

	deps.Services.Registration = services.NewRegistrationService(l, cfg.ExplorerURL, metricsReg)
	deps.Services.Validation = newValidationService(cfg, deps.Services.Archive)

	planner, err := newPlanner(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Services.GeocodeCache = common.NewCacheService(cfg.Agent.GeocodeTTL, 10*time.Minute)
	deps.Services.GeocodeCache.OnLookup(func(hit bool) {
		if hit {
			metricsReg.CacheHitsTotal.WithLabelValues("geocode").Inc()
		} else {
			metricsReg.CacheMissesTotal.WithLabelValues("geocode").Inc()
		}
	})
	deps.Services.Agent = newDispatcher(cfg, planner, deps.Services.GeocodeCache, metricsReg)

	return deps, nil
}

func (d *Dependencies) initLedgerStore(ctx context.Context) (ledger.Store, error) {
	cfg := d.Config
	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Ledger.Store {
	case "memory":
		logging.Warn("Using the in-memory ledger store; registrations are lost on restart")
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		gdb, err = db.OpenLedgerDB("sqlite", cfg.Ledger.SQLitePath)
	case "postgres":
		gdb, err = db.OpenLedgerDB("postgres", cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger store %q", cfg.Ledger.Store)
	}
	if err != nil {
		return nil, err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		d.closers = append(d.closers, sqlDB.Close)
	}

	repo := repositories.NewLedgerRepository(gdb, cfg.Ledger.Address)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	d.Repo.Ledger = repo
	return repo, nil
}

func (d *Dependencies) initIndex(ctx context.Context, indexDB *sqlx.DB) error {
	index := repositories.NewFlightEventIndex(indexDB)
	if err := index.EnsureSchema(ctx); err != nil {
		return err
	}
	d.Repo.Index = index
	return nil
}

func newValidationService(cfg *config.Config, archive *common.ArchiveService) *validation.Service {
	runner := validation.NewRunner(validation.RunnerConfig{
		Command:        cfg.Validator.Command,
		Args:           cfg.Validator.Args,
		Dir:            cfg.Validator.Dir,
		Timeout:        cfg.Validator.Timeout,
		MaxOutputBytes: cfg.Validator.MaxOutputBytes,
		MaxConcurrent:  cfg.Validator.MaxConcurrent,
	})
	if archive == nil {
		return validation.NewService(runner, nil)
	}
	return validation.NewService(runner, archive)
}

var errPlannerNotConfigured = errors.New("agent planner is not configured: set FLIGHTREG_AGENT_API_KEY")

func newPlanner(ctx context.Context, cfg *config.Config) (agent.Planner, error) {
	if cfg.Agent.APIKey == "" {
		logging.Warn("No agent API key configured; /mcp will fail until one is set")
		return agent.PlannerFunc(func(context.Context, agent.PlanInput) (agent.Step, error) {
			return agent.Step{}, errPlannerNotConfigured
		}), nil
	}
	return agent.NewGeminiPlanner(ctx, cfg.Agent.APIKey, cfg.Agent.Model)
}

func newDispatcher(cfg *config.Config, planner agent.Planner, cache *common.CacheService, metricsReg *metrics.MetricsRegistry) *agent.Dispatcher {
	tools := agent.NewRegistry(
		agent.NewGeocodeTool(cfg.Agent.GeocodeURL, cfg.Agent.ToolTimeout, cache),
		agent.NewContractTool(cfg.Agent.ContractURL, cfg.Agent.ToolTimeout),
	)
	d := agent.NewDispatcher(planner, tools, cfg.Agent.MaxHistory)
	d.OnToolCall = func(tool string, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metricsReg.AgentToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	}
	return d
}

// StreamReady reports whether both ends of the event index pipeline are
// configured.
func (d *Dependencies) StreamReady() bool {
	return d.Services.Stream != nil && d.Repo.Index != nil
}

// Close releases database and redis connections.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && !errors.Is(err, redis.ErrClosed) {
			logging.Warn("Failed to close dependency", "error", err.Error())
		}
	}
	d.closers = nil
}
