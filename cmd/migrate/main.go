package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/learnhub-backend/internal/bootstrap"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.SourceDir, "migrations source directory (create, validate)")
	name := flag.String("name", "", "migration name (create)")
	target := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	// file commands need neither config nor a database
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		if err := migrate.ValidateEmbedded(); err != nil {
			fail("embedded migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, logg, err := bootstrap.Load("migrate")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql.DB", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, cfg.DB.Driver)
	if err != nil {
		logg.Error(ctx, "failed to create migrator", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	case "version":
		if *target == "" {
			fail("missing -version for version command")
		}
		err = migrator.To(ctx, *target)
	default:
		fail("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}

	version, err := migrator.Version(ctx)
	if err != nil {
		logg.Error(ctx, "failed to read schema version", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "migration command completed")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
