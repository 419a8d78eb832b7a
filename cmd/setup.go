package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/clientbook/internal/repositories"
	"github.com/desertthunder/clientbook/internal/shared"
)

// Setup creates config.toml from the embedded template when missing, then initializes storage:
// migrations for the sql backend, an empty array for file backends.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, closeRepo, err := r.openRepository(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeRepo()

	switch repo := repo.(type) {
	case *repositories.FileFilterSort:
		backend := repo.Backend()
		if _, err := backend.ReadArray(repo.Path()); errors.Is(err, fs.ErrNotExist) {
			if err := backend.WriteArray(repo.Path(), nil, config.Storage.Pretty); err != nil {
				return fmt.Errorf("failed to create source: %w", err)
			}
			r.logger.Info("created empty source", "path", repo.Path())
		} else if err != nil {
			return err
		}
		r.writePlain("✓ %s storage ready: %s\n", backend.Name(), repo.Path())

	case *repositories.DBFilterSort:
		version, err := shared.MigrationVersion(ctx, repo.DB(), config.Database.Driver)
		if err != nil {
			return err
		}
		r.logger.Infof("setup complete for database: %v", config.Database.DSN)
		r.writePlain("✓ %s storage ready (schema version %d)\n", repo.Dialect().Name(), version)
	}

	return nil
}

// DBStatus prints the schema version of the sql backend.
func (r *Runner) DBStatus(ctx context.Context, cmd *cli.Command) error {
	return r.withSQL(ctx, cmd, func(repo *repositories.DBFilterSort, config *shared.Config) error {
		version, err := shared.MigrationVersion(ctx, repo.DB(), config.Database.Driver)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"driver": repo.Dialect().Name(), "version": version}, true)
		}
		return r.writePlain("%s schema version: %d\n", repo.Dialect().Name(), version)
	})
}

// DBRollback rolls the sql backend schema back by one migration.
func (r *Runner) DBRollback(ctx context.Context, cmd *cli.Command) error {
	return r.withSQL(ctx, cmd, func(repo *repositories.DBFilterSort, config *shared.Config) error {
		if err := shared.RollbackMigration(ctx, repo.DB(), config.Database.Driver, r.logger); err != nil {
			return err
		}
		return r.writePlain("✓ rolled back one migration\n")
	})
}

func (r *Runner) withSQL(ctx context.Context, cmd *cli.Command, fn func(*repositories.DBFilterSort, *shared.Config) error) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		db, ok := repo.(*repositories.DBFilterSort)
		if !ok {
			return fmt.Errorf("%w: %s requires the sql backend", shared.ErrInvalidArgument, cmd.Name)
		}
		return fn(db, config)
	})
}
