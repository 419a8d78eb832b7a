package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
	"github.com/desertthunder/clientbook/internal/validator"
)

const isoDate = "2006-01-02"

const clientColumns = "id, last_name, first_name, middle_name, passport_series, passport_number, birth_date, phone, email, address"

// SQLRepository implements [Repository] over the clients table.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

// NewSQLRepository creates a new SQL-backed client repository.
func NewSQLRepository(db *sql.DB, dialect Dialect, logger *log.Logger) *SQLRepository {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &SQLRepository{db: db, dialect: dialect, logger: shared.WithLogger(logger, "repo", dialect.Name())}
}

func (r *SQLRepository) Dialect() Dialect { return r.dialect }
func (r *SQLRepository) DB() *sql.DB      { return r.db }

// EnsureSchema applies pending migrations, creating the table, index and unique constraint if missing.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	return shared.RunMigrations(ctx, r.db, r.dialect.Name(), r.logger)
}

// ReadAll validates every row ordered by id.
func (r *SQLRepository) ReadAll(ctx context.Context, tolerant bool) ([]*models.Client, []models.RecordError, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	ok := []*models.Client{}
	errs := []models.RecordError{}
	i := 0
	for rows.Next() {
		c, id, err := scanClient(rows)
		if err != nil && !errors.Is(err, shared.ErrValidation) {
			return nil, nil, err
		}
		if err != nil {
			if !tolerant {
				return nil, nil, fmt.Errorf("failed to read clients: element #%d (id=%d): %w", i+1, id, err)
			}
			r.logger.Warn("skipping invalid row", "id", id, "error", err)
			errs = append(errs, models.RecordError{
				Index:        i,
				DisplayIndex: i + 1,
				ID:           id,
				ErrorType:    shared.ErrorKind(err),
				Message:      err.Error(),
			})
		} else {
			ok = append(ok, c)
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return ok, errs, nil
}

// GetByID returns the client with id, or nil with a NotFound note.
func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.Client, models.Notes, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}

	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT "+clientColumns+" FROM clients WHERE id = ?"), id)
	c, _, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Notes{notFoundNote(id, fmt.Sprintf("client with id=%d not found", id))}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return c, nil, nil
}

// GetKNShortList returns page k of size n ordered by id.
func (r *SQLRepository) GetKNShortList(ctx context.Context, k, n int, prefer models.ContactType) ([]*models.ClientShort, error) {
	if err := checkPage(k, n); err != nil {
		return nil, err
	}
	offset, ok := pageOffset(k, n)
	if !ok {
		return []*models.ClientShort{}, nil
	}
	query := "SELECT " + clientColumns + " FROM clients ORDER BY id LIMIT ? OFFSET ?"
	clients, err := r.queryClients(ctx, query, n, offset)
	if err != nil {
		return nil, err
	}
	return toShorts(clients, prefer), nil
}

// SortByLastName orders by last name compared byte-wise, ties by id.
func (r *SQLRepository) SortByLastName(ctx context.Context, ascending bool) ([]*models.Client, error) {
	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM clients ORDER BY %s %s, id ASC", clientColumns, r.dialect.OrderKey("last_name", false), dir)
	return r.queryClients(ctx, query)
}

// AddClient validates src and inserts it; the database assigns the id.
func (r *SQLRepository) AddClient(ctx context.Context, src models.Source) (*models.Client, error) {
	c, err := models.NewClient(src)
	if err != nil {
		return nil, err
	}

	query := "INSERT INTO clients (last_name, first_name, middle_name, passport_series, passport_number, birth_date, phone, email, address) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id"

	args, err := insertArgs(c)
	if err != nil {
		return nil, err
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&id); err != nil {
		return nil, r.translate(err, c, "failed to add client")
	}
	c.SetID(id)
	r.logger.Info("client added", "id", id)
	return c, nil
}

// ReplaceByID updates every field of the row with id, keeping the id.
func (r *SQLRepository) ReplaceByID(ctx context.Context, id int64, src models.Source) (*models.Client, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	c, err := models.NewClient(src)
	if err != nil {
		return nil, err
	}
	if c.HasID() && c.ID() != id {
		return nil, fmt.Errorf("%w: payload id=%d != target id=%d", shared.ErrMismatchedID, c.ID(), id)
	}

	query := "UPDATE clients SET last_name = ?, first_name = ?, middle_name = ?, passport_series = ?, passport_number = ?, " +
		"birth_date = ?, phone = ?, email = ?, address = ? WHERE id = ? RETURNING id"

	args, err := insertArgs(c)
	if err != nil {
		return nil, err
	}
	args = append(args, id)

	var got int64
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: client with id=%d not found", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, r.translate(err, c, "failed to replace client")
	}

	c.SetID(id)
	r.logger.Info("client replaced", "id", id)
	return c, nil
}

// DeleteByID removes the row with id and returns it.
func (r *SQLRepository) DeleteByID(ctx context.Context, id int64) (*models.Client, models.Notes, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}

	var (
		deleted *models.Client
		notes   models.Notes
	)
	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		row := tx.QueryRowContext(ctx, r.dialect.Rebind("SELECT "+clientColumns+" FROM clients WHERE id = ?"), id)
		c, _, err := scanClient(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			notes = append(notes, notFoundNote(id, fmt.Sprintf("client with id=%d not found", id)))
			return nil
		case errors.Is(err, shared.ErrValidation):
			notes = append(notes, models.Note{ID: id, ErrorType: shared.KindValidation, Message: "deleted, but the record was invalid: " + err.Error()})
		case err != nil:
			return err
		default:
			deleted = c
		}

		if _, err := tx.ExecContext(ctx, r.dialect.Rebind("DELETE FROM clients WHERE id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if !notes.Has(shared.KindNotFound) {
		r.logger.Info("client deleted", "id", id)
	}
	return deleted, notes, nil
}

func (r *SQLRepository) GetCount(ctx context.Context) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM clients")
}

func (r *SQLRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// queryClients runs a '?' query and returns its valid rows. Invalid rows are logged and skipped.
func (r *SQLRepository) queryClients(ctx context.Context, query string, args ...any) ([]*models.Client, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		c, id, err := scanClient(rows)
		if errors.Is(err, shared.ErrValidation) {
			r.logger.Warn("skipping invalid row", "id", id, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// translate maps constraint failures onto the shared error vocabulary.
func (r *SQLRepository) translate(err error, c *models.Client, action string) error {
	switch {
	case r.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: client already exists (passport %s)", shared.ErrDuplicateClient, c.Passport())
	case r.dialect.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

// scanClient reads one row and validates it. Validation failures match [shared.ErrValidation]
// and still report the row id.
func scanClient(s scanner) (*models.Client, int64, error) {
	var (
		id    int64
		birth any
	)
	var last, first, middle, series, number, phone, email, address string
	if err := s.Scan(&id, &last, &first, &middle, &series, &number, &birth, &phone, &email, &address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("failed to scan client: %w", err)
	}

	date, err := displayDate(birth)
	if err != nil {
		return nil, id, err
	}

	c, err := models.NewClient(models.FromMapping(map[string]any{
		models.FieldID:             id,
		models.FieldLastName:       last,
		models.FieldFirstName:      first,
		models.FieldMiddleName:     middle,
		models.FieldPassportSeries: strings.TrimSpace(series),
		models.FieldPassportNumber: strings.TrimSpace(number),
		models.FieldBirthDate:      date,
		models.FieldPhone:          phone,
		models.FieldEmail:          email,
		models.FieldAddress:        address,
	}))
	return c, id, err
}

// displayDate converts a DATE column value to DD-MM-YYYY. SQLite may hand back text or time.Time.
func displayDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.Format(validator.DateLayout), nil
	case []byte:
		return displayDate(string(d))
	case string:
		s := strings.TrimSpace(d)
		if len(s) >= len(isoDate) {
			if t, err := time.Parse(isoDate, s[:len(isoDate)]); err == nil {
				return t.Format(validator.DateLayout), nil
			}
		}
		return s, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: unexpected birth_date type %T", shared.ErrValidation, v)
	}
}

// storageDate converts DD-MM-YYYY to the ISO form bound to DATE columns.
func storageDate(display string) (string, error) {
	t, err := validator.ParseDate(models.FieldBirthDate, display)
	if err != nil {
		return "", err
	}
	return t.Format(isoDate), nil
}

func insertArgs(c *models.Client) ([]any, error) {
	birth, err := storageDate(c.BirthDate())
	if err != nil {
		return nil, err
	}
	return []any{
		c.LastName(), c.FirstName(), c.MiddleName(),
		c.PassportSeries(), c.PassportNumber(), birth,
		c.Phone(), c.Email(), c.Address(),
	}, nil
}
