package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port             string
	Env              string
	CORSAllowOrigin  []string
	DatabaseURL      string
	JWTSecret        string
	Redis            RedisConfig
	Usage            UsageConfig
	Endpoints        EndpointsConfig
	JobExtractionURL string
	JobLinkPattern   string
	OutboundOAuth    OAuthConfig
	LogJSON          bool
	LogDebug         bool
	ProgressInterval time.Duration
}

// RedisConfig locates the Redis instance holding guest usage counters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// UsageConfig carries daily limits and where anonymous counters live.
type UsageConfig struct {
	AnonDailyLimit int
	AuthDailyLimit int
	Timezone       string
	GuestTTL       time.Duration
	LocalDir       string
}

// EndpointsConfig lists the analysis endpoints for single or multi mode.
type EndpointsConfig struct {
	Mode           string
	URL            string
	ESFile         string
	ESDocumentLink string
	ENFile         string
	ENDocumentLink string
}

// OAuthConfig enables client-credentials auth on outbound calls when TokenURL is set.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return FromViper(NewViper())
}

// NewViper returns a viper instance bound to the environment, with best-effort
// loading of local .env files for dev convenience.
func NewViper(envFiles ...string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if len(envFiles) == 0 {
		envFiles = []string{".env", "cmd/.env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.MergeInConfig()
	}
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("USAGE_ANON_DAILY_LIMIT", 3)
	v.SetDefault("USAGE_AUTH_DAILY_LIMIT", 10)
	v.SetDefault("USAGE_TIMEZONE", "UTC")
	v.SetDefault("USAGE_GUEST_TTL", "48h")
	v.SetDefault("USAGE_LOCAL_DIR", defaultLocalDir())
	v.SetDefault("ANALYSIS_ENDPOINT_MODE", "single")
	v.SetDefault("JOB_LINK_HOST_PATTERN", "linkedin.com/jobs")
	v.SetDefault("LOG_JSON", true)
	v.SetDefault("LOG_DEBUG", false)
	v.SetDefault("PROGRESS_INTERVAL", "800ms")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		Port:            v.GetString("PORT"),
		Env:             normalizeEnv(v.GetString("ENV")),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     strings.TrimSpace(v.GetString("DATABASE_URL")),
		JWTSecret:       v.GetString("JWT_SECRET"),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Usage: UsageConfig{
			AnonDailyLimit: v.GetInt("USAGE_ANON_DAILY_LIMIT"),
			AuthDailyLimit: v.GetInt("USAGE_AUTH_DAILY_LIMIT"),
			Timezone:       strings.TrimSpace(v.GetString("USAGE_TIMEZONE")),
			GuestTTL:       v.GetDuration("USAGE_GUEST_TTL"),
			LocalDir:       strings.TrimSpace(v.GetString("USAGE_LOCAL_DIR")),
		},
		Endpoints: EndpointsConfig{
			Mode:           strings.ToLower(strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_MODE"))),
			URL:            strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_URL")),
			ESFile:         strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_ES_FILE")),
			ESDocumentLink: strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_ES_DOCUMENT_LINK")),
			ENFile:         strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_EN_FILE")),
			ENDocumentLink: strings.TrimSpace(v.GetString("ANALYSIS_ENDPOINT_EN_DOCUMENT_LINK")),
		},
		JobExtractionURL: strings.TrimSpace(v.GetString("JOB_EXTRACTION_URL")),
		JobLinkPattern:   strings.TrimSpace(v.GetString("JOB_LINK_HOST_PATTERN")),
		OutboundOAuth: OAuthConfig{
			TokenURL:     strings.TrimSpace(v.GetString("OUTBOUND_OAUTH_TOKEN_URL")),
			ClientID:     v.GetString("OUTBOUND_OAUTH_CLIENT_ID"),
			ClientSecret: v.GetString("OUTBOUND_OAUTH_CLIENT_SECRET"),
			Scopes:       splitAndTrim(v.GetString("OUTBOUND_OAUTH_SCOPES")),
		},
		LogJSON:          v.GetBool("LOG_JSON"),
		LogDebug:         v.GetBool("LOG_DEBUG"),
		ProgressInterval: v.GetDuration("PROGRESS_INTERVAL"),
	}
}

// Validate reports options that make the process unable to serve submissions.
// Endpoint URLs are checked by the endpoint resolver itself.
func (c Config) Validate() error {
	var errs []error
	if c.Env == "production" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required in production"))
	}
	if c.Env == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Usage.AnonDailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("USAGE_ANON_DAILY_LIMIT must be positive, got %d", c.Usage.AnonDailyLimit))
	}
	if c.Usage.AuthDailyLimit <= 0 {
		errs = append(errs, fmt.Errorf("USAGE_AUTH_DAILY_LIMIT must be positive, got %d", c.Usage.AuthDailyLimit))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.OutboundOAuth.TokenURL != "" && c.OutboundOAuth.ClientID == "" {
		errs = append(errs, errors.New("OUTBOUND_OAUTH_CLIENT_ID is required when OUTBOUND_OAUTH_TOKEN_URL is set"))
	}
	return errors.Join(errs...)
}

// Location resolves the timezone used for the daily usage reset.
func (c Config) Location() (*time.Location, error) {
	tz := c.Usage.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("USAGE_TIMEZONE %q: %w", tz, err)
	}
	return loc, nil
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func defaultLocalDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".", ".agentcv")
	}
	return filepath.Join(dir, "agentcv")
}
