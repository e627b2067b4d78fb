package server

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentcv-backend/internal/extract"
	"agentcv-backend/internal/shared/config"
	"agentcv-backend/internal/shared/metrics"
	"agentcv-backend/internal/shared/server/middleware"
	"agentcv-backend/internal/shared/server/respond"
	"agentcv-backend/internal/shared/storage/db"
	"agentcv-backend/internal/submissions"
	"agentcv-backend/internal/usage"
)

const (
	groupSubmissions = "SUBMISSIONS"
	groupExtract     = "EXTRACT"
	groupDefault     = "DEFAULT"
)

// RouterDeps carries the handlers and shared dependencies used to build the router.
type RouterDeps struct {
	Config            config.Config
	Verifier          middleware.TokenVerifier
	DB                *sql.DB
	UsageHandler      *usage.Handler
	SubmissionHandler *submissions.Handler
	ExtractHandler    *extract.Handler
	RateLimits        map[string]middleware.RateLimitRule
}

// DefaultRateLimits are the per-principal token buckets applied to the API.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		groupDefault:     {Rate: 5, Burst: 20},
		groupSubmissions: {Rate: 0.2, Burst: 3},
		groupExtract:     {Rate: 0.5, Burst: 5},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.DB))
	registerMeRoutes(api)
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterRoutes(api)
	}
	if deps.ExtractHandler != nil {
		deps.ExtractHandler.RegisterRoutes(api)
	}
	if deps.Config.IsDevLike() && deps.UsageHandler != nil {
		dev := api.Group("/dev")
		deps.UsageHandler.RegisterDevRoutes(dev)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return groupDefault
	}
	switch c.FullPath() {
	case "/api/v1/submissions":
		return groupSubmissions
	case "/api/v1/job-links/extract":
		return groupExtract
	default:
		return groupDefault
	}
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"ok": true, "database": "disabled"}
		if database != nil {
			if err := db.Ping(c.Request.Context(), database, 0); err != nil {
				body["ok"] = false
				body["database"] = "unreachable"
				respond.JSON(c, http.StatusServiceUnavailable, body)
				return
			}
			body["database"] = "ok"
		}
		respond.JSON(c, http.StatusOK, body)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
