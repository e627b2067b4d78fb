package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/progress"
	"agentcv-backend/internal/shared/auth"
	"agentcv-backend/internal/shared/config"
	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/server"
	"agentcv-backend/internal/shared/storage/db"
	"agentcv-backend/internal/shared/telemetry"
	"agentcv-backend/internal/submissions"
	"agentcv-backend/internal/usage"
	"agentcv-backend/internal/usage/kv"
)

// Engine is the submission engine without an HTTP surface. The API and the
// CLI each build one over their own anonymous store.
type Engine struct {
	Resolver    *endpoints.Resolver
	Usage       *usage.Service
	Submissions *submissions.Service
	Extractor   *extract.Client
}

// App holds shared dependencies of the API process.
type App struct {
	*Engine
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Redis             *redis.Client
	HTTPClient        *http.Client
	UsageHandler      *usage.Handler
	SubmissionHandler *submissions.Handler
	ExtractHandler    *extract.Handler
}

// Build prepares dependencies and wires routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.IsDevLike())
	if err != nil {
		return nil, err
	}

	sqlDB, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		DB:         sqlDB,
		Redis:      buildRedis(ctx, cfg),
		HTTPClient: httpx.NewClient(ctx, cfg.OutboundOAuth),
	}

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            cfg,
		Verifier:          verifier,
		DB:                sqlDB,
		UsageHandler:      app.UsageHandler,
		SubmissionHandler: app.SubmissionHandler,
		ExtractHandler:    app.ExtractHandler,
	})
	return app, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// OpenDB connects and migrates the usage database. It returns nil without an
// error when no DATABASE_URL is set, or in dev-like environments when the
// database cannot be reached.
func OpenDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		telemetry.Warn("bootstrap.database_disabled", map[string]any{
			"reason": "DATABASE_URL empty; authenticated usage will be unavailable",
		})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_connect_failed", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.migrations_failed", map[string]any{"error": err})
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

// buildRedis returns nil when no address is configured or the server does not
// answer; guest counters then live in process memory.
func buildRedis(ctx context.Context, cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		telemetry.Warn("bootstrap.redis_unreachable", map[string]any{
			"addr":  cfg.Redis.Addr,
			"error": err,
		})
		_ = client.Close()
		return nil
	}
	return client
}

// NewEngine wires the ledger, resolver, orchestrator and extractor. sqlDB may be
// nil, in which case authenticated usage fails closed. In dev-like environments
// an invalid endpoint table leaves Resolver nil so submissions report a
// configuration error instead of stopping the process.
func NewEngine(cfg config.Config, local kv.Store, sqlDB *sql.DB, client *http.Client) (*Engine, error) {
	if local == nil {
		local = kv.NewMemory()
	}
	var remote usage.CounterStore
	if sqlDB != nil {
		remote = usage.NewPGStore(sqlDB)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	ledger := usage.NewService(
		usage.NewLocalStore(local),
		remote,
		usage.Limits{Anonymous: cfg.Usage.AnonDailyLimit, Authenticated: cfg.Usage.AuthDailyLimit},
		usage.WithLocation(loc),
	)

	resolver, err := endpoints.FromConfig(cfg.Endpoints)
	if err != nil {
		if !cfg.IsDevLike() {
			return nil, err
		}
		telemetry.Error("bootstrap.endpoints_invalid", map[string]any{"error": err})
		resolver = nil
	}
	if strings.TrimSpace(cfg.JobExtractionURL) == "" {
		telemetry.Info("bootstrap.extraction_disabled", nil)
	}

	return &Engine{
		Resolver: resolver,
		Usage:    ledger,
		Submissions: &submissions.Service{
			Ledger:         ledger,
			Resolver:       resolver,
			Client:         client,
			JobLinkPattern: cfg.JobLinkPattern,
			Progress:       progress.Simulator{Interval: cfg.ProgressInterval},
		},
		Extractor: extract.NewClient(cfg.JobExtractionURL, cfg.JobLinkPattern, client),
	}, nil
}

func buildServices(app *App) error {
	var local kv.Store = kv.NewMemory()
	if app.Redis != nil {
		local = kv.NewRedis(app.Redis, app.Config.Usage.GuestTTL)
	}
	engine, err := NewEngine(app.Config, local, app.DB, app.HTTPClient)
	if err != nil {
		return err
	}
	app.Engine = engine
	app.UsageHandler = usage.NewHandler(engine.Usage)
	app.SubmissionHandler = submissions.NewHandler(engine.Submissions, engine.Extractor)
	app.ExtractHandler = extract.NewHandler(engine.Extractor)

	if app.UsageHandler == nil || app.SubmissionHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}
