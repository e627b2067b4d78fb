package main

// Run database migrations:
//   go run ./cmd/migrate            apply pending migrations
//   go run ./cmd/migrate down       revert the latest migration
//   go run ./cmd/migrate version    print the schema version

import (
	"context"
	"fmt"
	"os"

	"agentcv-backend/internal/shared/config"
	"agentcv-backend/internal/shared/storage/db"
	"agentcv-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.LogJSON, cfg.LogDebug); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer telemetry.Sync()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var v int64
		if v, err = db.MigrationVersion(ctx, sqlDB); err == nil {
			fmt.Println(v)
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": cmd, "error": err})
		os.Exit(1)
	}
}
