package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/clientbook/internal/formatter"
	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/repositories"
	"github.com/desertthunder/clientbook/internal/shared"
)

// Clean validates the source tolerantly and prints the load report.
// File backends also write their _clean, _snapshot and _errors artifacts.
func (r *Runner) Clean(ctx context.Context, cmd *cli.Command) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		var (
			ok   []*models.Client
			errs []models.RecordError
		)

		if file, isFile := repo.(*repositories.FileFilterSort); isFile {
			res, err := file.WriteArtifacts(ctx)
			if err != nil {
				return err
			}
			ok, errs = res.Clients, res.Errors
			r.logger.Info("artifacts written", "clean", res.CleanPath, "snapshot", res.SnapshotPath, "errors", res.ErrorsPath)
		} else {
			var err error
			if ok, errs, err = repo.ReadAll(ctx, true); err != nil {
				return err
			}
		}

		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"clients": clientRecords(ok), "errors": errs}, true)
		}
		report := formatter.RenderReport(ok, errs, formatter.ReportOpts{
			View:   formatter.ParseView(cmd.String("view")),
			Styled: r.styled,
		})
		return r.writePlain("%s\n", report)
	})
}

// List prints one filtered, sorted page of short views with the filtered total.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		k, n, err := pageFlags(cmd)
		if err != nil {
			return err
		}
		contact, err := preferContact(cmd, config)
		if err != nil {
			return err
		}
		filter := filterFromFlags(cmd)
		sort := &repositories.SortSpec{By: cmd.String("sort"), Asc: !cmd.Bool("desc")}

		shorts, err := repo.FilteredShortList(ctx, k, n, filter, sort, contact)
		if err != nil {
			return err
		}
		total, err := repo.FilteredCount(ctx, filter)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			items := make([]models.ShortRecord, len(shorts))
			for i, s := range shorts {
				items[i] = s.Record()
			}
			return r.writeJSON(map[string]any{"page": k, "size": n, "total": total, "items": items}, true)
		}

		r.writePlainHeader(fmt.Sprintf("Clients: page %d (size %d), %d matching", k, n, total))
		text, err := formatter.ExportShortToText(shorts)
		if err != nil {
			return err
		}
		return r.writePlain("%s", text)
	})
}

func (r *Runner) Count(ctx context.Context, cmd *cli.Command) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		filter := filterFromFlags(cmd)

		var (
			n   int
			err error
		)
		if filter == nil {
			n, err = repo.GetCount(ctx)
		} else {
			n, err = repo.FilteredCount(ctx, filter)
		}
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(map[string]int{"count": n}, false)
		}
		return r.writePlain("%d\n", n)
	})
}

// Get prints the full view of one client and any lookup notes.
func (r *Runner) Get(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		c, notes, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"client": optionalRecord(c), "notes": nonNilNotes(notes)}, true)
		}
		if c != nil {
			r.writePlain("%s\n", c.FullString())
		}
		if len(notes) > 0 {
			r.writePlain("%s\n", formatter.RenderNotes(notes, r.styled))
		}
		return nil
	})
}

func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	src, err := recordSource(cmd)
	if err != nil {
		return err
	}
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		c, err := repo.AddClient(ctx, src)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(c.Record(), true)
		}
		return r.writePlain("✓ added client id=%d: %s\n", c.ID(), c)
	})
}

func (r *Runner) Replace(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	src, err := recordSource(cmd)
	if err != nil {
		return err
	}
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		c, err := repo.ReplaceByID(ctx, id, src)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(c.Record(), true)
		}
		return r.writePlain("✓ replaced client id=%d: %s\n", c.ID(), c)
	})
}

func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		c, notes, err := repo.DeleteByID(ctx, id)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"deleted": optionalRecord(c), "notes": nonNilNotes(notes)}, true)
		}
		if c != nil {
			r.writePlain("✓ deleted client id=%d: %s\n", id, c)
		}
		if len(notes) > 0 {
			r.writePlain("%s\n", formatter.RenderNotes(notes, r.styled))
		}
		return nil
	})
}

// Sort prints every client ordered by last name as stored.
func (r *Runner) Sort(ctx context.Context, cmd *cli.Command) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		clients, err := repo.SortByLastName(ctx, !cmd.Bool("desc"))
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(clientRecords(clients), true)
		}
		for _, c := range clients {
			r.writePlain("%s\n", c.Delimited(config.Storage.Separator))
		}
		return nil
	})
}

// Export writes every valid client to a file.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	return r.withRepository(ctx, cmd, func(repo repositories.FilterSorter, config *shared.Config) error {
		clients, _, err := repo.ReadAll(ctx, true)
		if err != nil {
			return err
		}
		path, err := formatter.WriteExport(clients, cmd.String("format"), cmd.String("output"), config.Storage.Separator)
		if err != nil {
			return err
		}
		r.logger.Info("export written", "path", path, "clients", len(clients))
		return r.writePlain("✓ exported %d clients to %s\n", len(clients), path)
	})
}

// Import bulk loads a JSON or YAML array into the sql backend.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	file := cmd.StringArg("file")
	if file == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}

	var backend repositories.Backend = repositories.NewJSONBackend()
	if lower := strings.ToLower(file); strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		backend = repositories.NewYAMLBackend()
	}

	return r.withSQL(ctx, cmd, func(repo *repositories.DBFilterSort, config *shared.Config) error {
		summary, err := repo.ImportFile(ctx, backend, file, repositories.ImportOpts{
			Replace:     cmd.Bool("replace"),
			PreserveIDs: cmd.Bool("preserve-ids"),
		})
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(summary, true)
		}
		r.writePlain("total: %d, inserted: %d, skipped (conflict): %d, invalid: %d\n",
			summary.Total, summary.Inserted, summary.SkippedConflict, summary.Invalid)
		for _, e := range summary.Errors {
			r.writePlain("- %s: %s: %s\n", e.Hint(), e.ErrorType, e.Message)
		}
		return nil
	})
}

// filterFromFlags returns nil when no filter flag is set.
func filterFromFlags(cmd *cli.Command) *repositories.Filter {
	f := repositories.Filter{
		LastName:       cmd.String("last-name"),
		FirstName:      cmd.String("first-name"),
		MiddleName:     cmd.String("middle-name"),
		Phone:          cmd.String("phone"),
		Email:          cmd.String("email"),
		PassportSeries: cmd.String("series"),
		PassportNumber: cmd.String("number"),
		BirthDateFrom:  cmd.String("born-from"),
		BirthDateTo:    cmd.String("born-to"),
	}
	if f == (repositories.Filter{}) {
		return nil
	}
	return &f
}

func parseID(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	id, ok := models.NormalizeID(raw)
	if !ok {
		return 0, fmt.Errorf("%w: id must be a positive integer, got %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}

// recordSource reads the record argument as delimited when --sep is set, as text otherwise.
func recordSource(cmd *cli.Command) (models.Source, error) {
	record := cmd.StringArg("record")
	if strings.TrimSpace(record) == "" {
		return models.Source{}, fmt.Errorf("%w: record", shared.ErrMissingArgument)
	}
	if sep := cmd.String("sep"); sep != "" {
		return models.FromDelimited(record, sep), nil
	}
	return models.FromText(record), nil
}

func clientRecords(clients []*models.Client) []models.ClientRecord {
	out := make([]models.ClientRecord, len(clients))
	for i, c := range clients {
		out[i] = c.Record()
	}
	return out
}

func optionalRecord(c *models.Client) *models.ClientRecord {
	if c == nil {
		return nil
	}
	rec := c.Record()
	return &rec
}

func nonNilNotes(notes models.Notes) models.Notes {
	if notes == nil {
		return models.Notes{}
	}
	return notes
}
