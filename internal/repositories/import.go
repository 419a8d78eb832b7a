package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
)

// ImportOpts controls [SQLRepository.ImportRecords].
type ImportOpts struct {
	// Replace empties the table (and resets the id sequence) before loading.
	Replace bool
	// PreserveIDs inserts record ids instead of letting the database assign them.
	PreserveIDs bool
}

// ImportSummary reports the outcome of a bulk load.
type ImportSummary struct {
	Total           int                  `json:"total"`
	Inserted        int                  `json:"inserted"`
	SkippedConflict int                  `json:"skipped_conflict"`
	Invalid         int                  `json:"invalid"`
	Errors          []models.RecordError `json:"errors"`
}

// ImportFile reads an array with backend and loads it with [SQLRepository.ImportRecords].
func (r *SQLRepository) ImportFile(ctx context.Context, backend Backend, path string, opts ImportOpts) (*ImportSummary, error) {
	records, err := backend.ReadArray(path)
	if err != nil {
		return nil, err
	}
	return r.ImportRecords(ctx, records, opts)
}

// ImportRecords validates and inserts records in one transaction.
// Invalid records are counted and reported; natural-key or id conflicts are skipped.
func (r *SQLRepository) ImportRecords(ctx context.Context, records []any, opts ImportOpts) (*ImportSummary, error) {
	summary := &ImportSummary{Total: len(records), Errors: []models.RecordError{}}

	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if opts.Replace {
			for _, stmt := range r.dialect.truncate {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to clear clients: %w", err)
				}
			}
		}

		for i, item := range records {
			c, err := clientFromRaw(item)
			if err != nil {
				summary.Invalid++
				summary.Errors = append(summary.Errors, models.RecordError{
					Index:        i,
					DisplayIndex: i + 1,
					ID:           rawID(item),
					ErrorType:    shared.ErrorKind(err),
					Message:      err.Error(),
				})
				continue
			}

			inserted, err := r.importOne(ctx, tx, c, opts.PreserveIDs)
			if err != nil {
				return fmt.Errorf("failed to import element #%d: %w", i+1, err)
			}
			if inserted {
				summary.Inserted++
			} else {
				summary.SkippedConflict++
			}
		}

		if opts.PreserveIDs && r.dialect.resetSequence != "" {
			if _, err := tx.ExecContext(ctx, r.dialect.resetSequence); err != nil {
				return fmt.Errorf("failed to reset id sequence: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("import finished",
		"total", summary.Total, "inserted", summary.Inserted,
		"skipped", summary.SkippedConflict, "invalid", summary.Invalid)
	return summary, nil
}

func (r *SQLRepository) importOne(ctx context.Context, tx DBTX, c *models.Client, preserveID bool) (bool, error) {
	args, err := insertArgs(c)
	if err != nil {
		return false, err
	}

	cols := "last_name, first_name, middle_name, passport_series, passport_number, birth_date, phone, email, address"
	marks := "?, ?, ?, ?, ?, ?, ?, ?, ?"
	if preserveID && c.HasID() {
		cols = "id, " + cols
		marks = "?, " + marks
		args = append([]any{c.ID()}, args...)
	}

	query := fmt.Sprintf("INSERT INTO clients (%s) VALUES (%s) ON CONFLICT DO NOTHING RETURNING id", cols, marks)

	var id int64
	err = tx.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.translate(err, c, "failed to insert client")
	}
	return true, nil
}
