package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
	"github.com/desertthunder/clientbook/internal/validator"
)

// Sortable contract columns. Anything else falls back to [ContractSortID].
const (
	ContractSortID      = "id"
	ContractSortNumber  = "number"
	ContractSortEndDate = "end_date"
)

const contractColumns = "id, number, client_id, principal, status, start_date, end_date, created_at"

// ContractFilter holds independently optional predicates over contracts; zero fields are unset.
type ContractFilter struct {
	// Number is a case-insensitive substring match.
	Number   string `json:"number,omitempty"`
	ClientID int64  `json:"client_id,omitempty"`
	Status   string `json:"status,omitempty"`
	// Inclusive YYYY-MM-DD bounds; any may be omitted.
	StartFrom string `json:"start_from,omitempty"`
	StartTo   string `json:"start_to,omitempty"`
	EndFrom   string `json:"end_from,omitempty"`
	EndTo     string `json:"end_to,omitempty"`
}

// where renders the filter as a '?' WHERE clause. Malformed bounds or statuses are argument errors.
func (f *ContractFilter) where(d Dialect) (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}

	var (
		conds []string
		args  []any
	)
	if f.Number != "" {
		conds = append(conds, d.Contains("number"))
		args = append(args, escapeLike(f.Number))
	}
	if f.ClientID != 0 {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if strings.TrimSpace(f.Status) != "" {
		st, err := models.ParseContractStatus(f.Status)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		conds = append(conds, "status = ?")
		args = append(args, string(st))
	}

	for _, b := range []struct {
		field, cond, value string
	}{
		{"start_from", "start_date >= ?", f.StartFrom},
		{"start_to", "start_date <= ?", f.StartTo},
		{"end_from", "end_date >= ?", f.EndFrom},
		{"end_to", "end_date <= ?", f.EndTo},
	} {
		if strings.TrimSpace(b.value) == "" {
			continue
		}
		t, err := validator.ISODate(b.field, b.value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		conds = append(conds, b.cond)
		args = append(args, t.Format(validator.ISOLayout))
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// contractOrderBy whitelists id, number and end_date. A nil spec lists the newest contracts first.
func contractOrderBy(d Dialect, spec *SortSpec) string {
	if spec == nil {
		return " ORDER BY id DESC"
	}
	dir := "ASC"
	if !spec.Asc {
		dir = "DESC"
	}
	switch col := strings.ToLower(strings.TrimSpace(spec.By)); col {
	case ContractSortNumber:
		return fmt.Sprintf(" ORDER BY %s %s, id ASC", d.exact(col), dir)
	case ContractSortEndDate:
		return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
	default:
		return " ORDER BY id " + dir
	}
}

// ContractRepository stores contracts next to the clients table of the same database.
type ContractRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

func NewContractRepository(db *sql.DB, dialect Dialect, logger *log.Logger) *ContractRepository {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &ContractRepository{db: db, dialect: dialect, logger: shared.WithLogger(logger, "repo", "contracts")}
}

// Create inserts c for an existing client. The database assigns the id and created_at.
func (r *ContractRepository) Create(ctx context.Context, c *models.Contract) (*models.Contract, error) {
	query := "INSERT INTO contracts (number, client_id, principal, status, start_date, end_date) " +
		"VALUES (?, ?, ?, ?, ?, ?) RETURNING id, created_at"

	out := *c
	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := r.ensureClient(ctx, tx, c.ClientID()); err != nil {
			return err
		}

		var (
			id      int64
			created any
		)
		if err := tx.QueryRowContext(ctx, r.dialect.Rebind(query), contractArgs(c)...).Scan(&id, &created); err != nil {
			return r.translate(err, c, "failed to create contract")
		}
		out.SetID(id)
		out.SetCreatedAt(timestampValue(created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("contract created", "id", out.ID(), "number", out.Number(), "client", out.ClientID())
	return &out, nil
}

// Update replaces every field of contract id with c, keeping id and created_at.
func (r *ContractRepository) Update(ctx context.Context, id int64, c *models.Contract) (*models.Contract, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if c.HasID() && c.ID() != id {
		return nil, fmt.Errorf("%w: payload id=%d != target id=%d", shared.ErrMismatchedID, c.ID(), id)
	}

	query := "UPDATE contracts SET number = ?, client_id = ?, principal = ?, status = ?, start_date = ?, end_date = ? " +
		"WHERE id = ? RETURNING created_at"

	out := *c
	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if err := r.ensureClient(ctx, tx, c.ClientID()); err != nil {
			return err
		}

		var created any
		err := tx.QueryRowContext(ctx, r.dialect.Rebind(query), append(contractArgs(c), id)...).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: contract with id=%d not found", shared.ErrNotFound, id)
		}
		if err != nil {
			return r.translate(err, c, "failed to update contract")
		}
		out.SetID(id)
		out.SetCreatedAt(timestampValue(created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("contract updated", "id", id)
	return &out, nil
}

// Close sets the status of contract id to Closed and returns the stored row.
func (r *ContractRepository) Close(ctx context.Context, id int64) (*models.Contract, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	query := "UPDATE contracts SET status = ? WHERE id = ? RETURNING " + contractColumns
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), string(models.StatusClosed), id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contract with id=%d not found", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Info("contract closed", "id", id)
	return c, nil
}

func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*models.Contract, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT "+contractColumns+" FROM contracts WHERE id = ?"), id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contract with id=%d not found", shared.ErrNotFound, id)
	}
	return c, err
}

// GetKN returns page k of size n of the filtered, sorted contracts.
func (r *ContractRepository) GetKN(ctx context.Context, k, n int, filter *ContractFilter, sort *SortSpec) ([]*models.Contract, error) {
	if err := checkPage(k, n); err != nil {
		return nil, err
	}
	where, args, err := filter.where(r.dialect)
	if err != nil {
		return nil, err
	}

	offset, ok := pageOffset(k, n)
	if !ok {
		return []*models.Contract{}, nil
	}

	query := "SELECT " + contractColumns + " FROM contracts" + where + contractOrderBy(r.dialect, sort) + " LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), append(args, n, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	contracts := []*models.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}
	return contracts, nil
}

func (r *ContractRepository) Count(ctx context.Context, filter *ContractFilter) (int, error) {
	where, args, err := filter.where(r.dialect)
	if err != nil {
		return 0, err
	}
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT COUNT(*) FROM contracts"+where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	return n, nil
}

// AttachClientNames sets "Last First Middle" on each contract with one query over the clients table.
// Contracts whose client no longer exists keep an empty name.
func (r *ContractRepository) AttachClientNames(ctx context.Context, contracts []*models.Contract) error {
	seen := map[int64]bool{}
	var ids []any
	for _, c := range contracts {
		if !seen[c.ClientID()] {
			seen[c.ClientID()] = true
			ids = append(ids, c.ClientID())
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := "SELECT id, last_name, first_name, middle_name FROM clients WHERE id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), ids...)
	if err != nil {
		return fmt.Errorf("failed to query client names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var (
			id                  int64
			last, first, middle string
		)
		if err := rows.Scan(&id, &last, &first, &middle); err != nil {
			return fmt.Errorf("failed to scan client name: %w", err)
		}
		names[id] = strings.Join(strings.Fields(last+" "+first+" "+middle), " ")
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate client names: %w", err)
	}

	for _, c := range contracts {
		c.SetClientName(names[c.ClientID()])
	}
	return nil
}

func (r *ContractRepository) ensureClient(ctx context.Context, tx DBTX, clientID int64) error {
	var n int
	if err := tx.QueryRowContext(ctx, r.dialect.Rebind("SELECT COUNT(*) FROM clients WHERE id = ?"), clientID).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up client: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: client with id=%d not found", shared.ErrNotFound, clientID)
	}
	return nil
}

func (r *ContractRepository) translate(err error, c *models.Contract, action string) error {
	switch {
	case r.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: contract number %q already exists", shared.ErrDuplicateContract, c.Number())
	case r.dialect.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

func contractArgs(c *models.Contract) []any {
	return []any{c.Number(), c.ClientID(), c.Principal(), string(c.Status()), c.StartDate(), c.EndDate()}
}

func scanContract(s scanner) (*models.Contract, error) {
	var (
		id, clientID                     int64
		number, status                   string
		principal, start, end, createdAt any
	)
	if err := s.Scan(&id, &number, &clientID, &principal, &status, &start, &end, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}

	c, err := models.NewContract(map[string]any{
		models.ContractFieldID:        id,
		models.ContractFieldNumber:    number,
		models.ContractFieldClientID:  clientID,
		models.ContractFieldPrincipal: amountValue(principal),
		models.ContractFieldStatus:    status,
		models.ContractFieldStartDate: isoValue(start),
		models.ContractFieldEndDate:   isoValue(end),
	})
	if err != nil {
		return nil, fmt.Errorf("contract id=%d: %w", id, err)
	}
	c.SetCreatedAt(timestampValue(createdAt))
	return c, nil
}

// amountValue renders a NUMERIC column value. SQLite hands back int64 or float64, pgx a decimal string.
func amountValue(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', 2, 64)
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// isoValue converts a DATE column value to YYYY-MM-DD.
func isoValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(validator.ISOLayout)
	case []byte:
		return isoValue(string(t))
	case string:
		s := strings.TrimSpace(t)
		if len(s) > len(validator.ISOLayout) {
			s = s[:len(validator.ISOLayout)]
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

func timestampValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return timestampValue(string(t))
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
			if ts, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
