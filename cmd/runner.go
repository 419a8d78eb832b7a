package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/repositories"
	"github.com/desertthunder/clientbook/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
	styled bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	// Styled colorizes reports with the lipgloss palette.
	Styled bool
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		styled: opts.Styled,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, cleanCommand, listCommand, countCommand, getCommand, addCommand,
		replaceCommand, deleteCommand, sortCommand, exportCommand, importCommand, dbCommand,
		contractCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads --config and applies flag overrides.
// A missing default config.toml falls back to defaults; a missing path passed explicitly is an error.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config := *r.config

	if path := cmd.String("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = *loaded
		} else if cmd.IsSet("config") {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if backend := cmd.String("backend"); backend != "" {
		config.Storage.Backend = backend
	}
	if path := cmd.String("path"); path != "" {
		config.Storage.Path = path
	}
	if dsn := cmd.String("dsn"); dsn != "" {
		config.Database.DSN = dsn
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	level, err := shared.ParseLogLevel(config.Log.Level)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, level)
	return &config, nil
}

// openRepository builds the decorated repository selected by config.
// The returned close function releases the database connection for the sql backend.
func (r *Runner) openRepository(ctx context.Context, config *shared.Config) (repositories.FilterSorter, func(), error) {
	switch config.Storage.Backend {
	case shared.BackendJSON, shared.BackendYAML:
		opts := repositories.FileOpts{
			Logger:        r.logger,
			Pretty:        config.Storage.Pretty,
			NoRawFallback: !config.Storage.RawFallback,
		}
		repo := repositories.NewJSONRepository(config.Storage.Path, opts)
		if config.Storage.Backend == shared.BackendYAML {
			repo = repositories.NewYAMLRepository(config.Storage.Path, opts)
		}
		return repositories.NewFileFilterSort(repo), func() {}, nil

	case shared.BackendSQL:
		dialect, err := repositories.DialectFor(config.Database.Driver)
		if err != nil {
			return nil, nil, err
		}

		db, err := shared.NewDatabase(config.Database.Driver, config.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

		repo := repositories.NewSQLRepository(db, dialect, r.logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewDBFilterSort(repo), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, config.Storage.Backend)
	}
}

// withRepository loads config, opens the repository and runs fn with both.
func (r *Runner) withRepository(ctx context.Context, cmd *cli.Command, fn func(repositories.FilterSorter, *shared.Config) error) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, closeRepo, err := r.openRepository(ctx, config)
	if err != nil {
		return err
	}
	defer closeRepo()
	return fn(repo, config)
}

// preferContact resolves --contact over the configured default.
func preferContact(cmd *cli.Command, config *shared.Config) (models.ContactType, error) {
	c := cmd.String("contact")
	if c == "" {
		return models.ParseContactType(config.Storage.PreferContact), nil
	}
	switch t := models.ContactType(strings.ToLower(strings.TrimSpace(c))); t {
	case models.ContactPhone, models.ContactEmail:
		return t, nil
	}
	return "", fmt.Errorf("%w: --contact must be phone or email, got %q", shared.ErrInvalidFlag, c)
}

// pageFlags reads --page and --size, which must both be positive.
func pageFlags(cmd *cli.Command) (k, n int, err error) {
	k, n = int(cmd.Int("page")), int(cmd.Int("size"))
	if k <= 0 || n <= 0 {
		return 0, 0, fmt.Errorf("%w: --page and --size must be positive, got %d and %d", shared.ErrInvalidFlag, k, n)
	}
	return k, n, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
