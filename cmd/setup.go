package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing, then initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Config written to %s\n", configPath)

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		config.ApplyEnv()
		r.config = config
		r.configPath = configPath
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)

	if err := r.config.Validate(); err != nil {
		r.writePlainln("⚠ %v", err)
		r.writePlain("Edit %s before running download, complete or playlist.\n", configPath)
	}
	return nil
}
