package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentcv-backend/internal/bootstrap"
	"agentcv-backend/internal/shared/config"
	"agentcv-backend/internal/shared/httpx"
	"agentcv-backend/internal/shared/telemetry"
	"agentcv-backend/internal/usage"
	"agentcv-backend/internal/usage/kv"
)

const app = "agentcv"

// cli carries what every subcommand shares.
type cli struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	cfgFile string
	userID  string
	client  *http.Client
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}
	var debug, jsonLogs bool

	root := &cobra.Command{
		Use:          app,
		Short:        "agentcv sends a resume and a job description for analysis",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.v = config.NewViper()
			c.v.SetDefault("LOG_JSON", false)
			if c.cfgFile != "" {
				c.v.SetConfigFile(c.cfgFile)
				c.v.SetConfigType(configType(c.cfgFile))
				if err := c.v.MergeInConfig(); err != nil {
					return fmt.Errorf("reading config %s: %w", c.cfgFile, err)
				}
			}
			if cmd.Flags().Changed("debug") {
				c.v.Set("LOG_DEBUG", debug)
			}
			if cmd.Flags().Changed("json-logs") {
				c.v.Set("LOG_JSON", jsonLogs)
			}
			return telemetry.InitTo("stderr", c.v.GetBool("LOG_JSON"), c.v.GetBool("LOG_DEBUG"))
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "a config file with the same keys as the environment")
	root.PersistentFlags().StringVar(&c.userID, "user", "", "count usage against this signed-in user instead of this device")
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "json format for logging")

	root.AddCommand(c.submitCmd(), c.usageCmd(), c.extractCmd())
	return root
}

func configType(path string) string {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "yaml"
}

func (c *cli) config() config.Config {
	return config.FromViper(c.v)
}

// identity uses the local usage directory as the device scope.
func (c *cli) identity(cfg config.Config) usage.Identity {
	return usage.Identity{UserID: c.userID, Device: cfg.Usage.LocalDir}
}

// engine builds the submission engine. The database is only opened for a
// signed-in user; anonymous counters live in files under the usage directory.
func (c *cli) engine(ctx context.Context) (*bootstrap.Engine, config.Config, func(), error) {
	cfg := c.config()
	var sqlDB *sql.DB
	if c.userID != "" {
		db, err := bootstrap.OpenDB(ctx, cfg)
		if err != nil {
			return nil, cfg, nil, err
		}
		sqlDB = db
	}
	cleanup := func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		telemetry.Sync()
	}

	client := c.client
	if client == nil {
		client = httpx.NewClient(ctx, cfg.OutboundOAuth)
	}
	eng, err := bootstrap.NewEngine(cfg, kv.NewFile(cfg.Usage.LocalDir), sqlDB, client)
	if err != nil {
		cleanup()
		return nil, cfg, nil, err
	}
	return eng, cfg, cleanup, nil
}
