package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/picasync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the config file when missing, then initializes every
// SQLite file the config uses and runs migrations on it.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if !cmd.IsSet("config") && r.configPath != "" {
		configPath = r.configPath
	}

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	r.config = config

	var paths []string
	if config.Storage.Engine == "sqlite" {
		paths = append(paths, config.Storage.Path)
	}
	if config.Sync.Transport == "journal" && (len(paths) == 0 || paths[0] != config.Sync.JournalPath) {
		paths = append(paths, config.Sync.JournalPath)
	}

	if len(paths) == 0 {
		r.logger.Info("no SQLite files configured", "engine", config.Storage.Engine, "transport", config.Sync.Transport)
		return nil
	}

	for _, path := range paths {
		r.logger.Info("initializing database", "path", path)

		db, err := shared.NewDatabase(path)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}

		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.ApplyPragmas(db); err != nil {
			db.Close()
			return err
		}

		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		db.Close()
		r.logger.Infof("setup complete for database: %v", path)
	}
	return nil
}
