package repositories

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
	"github.com/desertthunder/clientbook/internal/validator"
)

// Sortable columns. Anything else falls back to [SortID].
const (
	SortID        = "id"
	SortLastName  = "last_name"
	SortBirthDate = "birth_date"
)

// Filter holds independently optional predicates; empty fields are unset. All set predicates are ANDed.
type Filter struct {
	// Case-insensitive substring matches.
	LastName   string `json:"last_name,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	MiddleName string `json:"middle_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	// Exact matches after trimming.
	PassportSeries string `json:"passport_series,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	// Inclusive DD-MM-YYYY bounds; either may be omitted.
	BirthDateFrom string `json:"birth_date_from,omitempty"`
	BirthDateTo   string `json:"birth_date_to,omitempty"`
}

// SortSpec selects the ordering. A nil spec means id ascending.
type SortSpec struct {
	By  string `json:"by"`
	Asc bool   `json:"asc"`
}

func (s *SortSpec) resolve() (col string, asc bool) {
	if s == nil {
		return SortID, true
	}
	switch col := strings.ToLower(strings.TrimSpace(s.By)); col {
	case SortID, SortLastName, SortBirthDate:
		return col, s.Asc
	default:
		return SortID, s.Asc
	}
}

type textPredicate struct {
	column string
	get    func(*models.Client) string
	value  string
}

// criteria is a [Filter] compiled once and evaluated either in memory or as SQL.
type criteria struct {
	contains []textPredicate
	exact    []textPredicate
	from, to *time.Time
}

func (f *Filter) compile() (*criteria, error) {
	c := &criteria{}
	if f == nil {
		return c, nil
	}

	for _, p := range []textPredicate{
		{column: models.FieldLastName, get: (*models.Client).LastName, value: f.LastName},
		{column: models.FieldFirstName, get: (*models.Client).FirstName, value: f.FirstName},
		{column: models.FieldMiddleName, get: (*models.Client).MiddleName, value: f.MiddleName},
		{column: models.FieldPhone, get: (*models.Client).Phone, value: f.Phone},
		{column: models.FieldEmail, get: (*models.Client).Email, value: f.Email},
	} {
		if p.value != "" {
			c.contains = append(c.contains, p)
		}
	}

	for _, p := range []textPredicate{
		{column: models.FieldPassportSeries, get: (*models.Client).PassportSeries, value: strings.TrimSpace(f.PassportSeries)},
		{column: models.FieldPassportNumber, get: (*models.Client).PassportNumber, value: strings.TrimSpace(f.PassportNumber)},
	} {
		if p.value != "" {
			c.exact = append(c.exact, p)
		}
	}

	var err error
	if c.from, err = dateBound("birth_date_from", f.BirthDateFrom); err != nil {
		return nil, err
	}
	if c.to, err = dateBound("birth_date_to", f.BirthDateTo); err != nil {
		return nil, err
	}
	return c, nil
}

func dateBound(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := validator.ParseDate(field, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return &t, nil
}

func (c *criteria) match(cl *models.Client) bool {
	for _, p := range c.contains {
		if !strings.Contains(strings.ToLower(p.get(cl)), strings.ToLower(p.value)) {
			return false
		}
	}
	for _, p := range c.exact {
		if p.get(cl) != p.value {
			return false
		}
	}
	if c.from != nil || c.to != nil {
		born, err := validator.ParseDate(models.FieldBirthDate, cl.BirthDate())
		if err != nil {
			return false
		}
		if c.from != nil && born.Before(*c.from) {
			return false
		}
		if c.to != nil && born.After(*c.to) {
			return false
		}
	}
	return true
}

// where renders the predicate as a '?' WHERE clause (empty when nothing is set).
func (c *criteria) where(d Dialect) (string, []any) {
	var (
		conds []string
		args  []any
	)
	for _, p := range c.contains {
		conds = append(conds, d.Contains(p.column))
		args = append(args, escapeLike(p.value))
	}
	for _, p := range c.exact {
		conds = append(conds, p.column+" = ?")
		args = append(args, p.value)
	}
	if c.from != nil {
		conds = append(conds, "birth_date >= ?")
		args = append(args, c.from.Format(isoDate))
	}
	if c.to != nil {
		conds = append(conds, "birth_date <= ?")
		args = append(args, c.to.Format(isoDate))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// sortClients orders clients in place: case-folded last name, calendar birth date or id, ties by id ascending.
func sortClients(clients []*models.Client, spec *SortSpec) {
	col, asc := spec.resolve()
	slices.SortStableFunc(clients, func(a, b *models.Client) int {
		var n int
		switch col {
		case SortLastName:
			n = strings.Compare(strings.ToLower(a.LastName()), strings.ToLower(b.LastName()))
		case SortBirthDate:
			n = birthTime(a).Compare(birthTime(b))
		default:
			n = cmp.Compare(a.ID(), b.ID())
		}
		if !asc {
			n = -n
		}
		if n != 0 {
			return n
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

func birthTime(c *models.Client) time.Time {
	t, _ := validator.ParseDate(models.FieldBirthDate, c.BirthDate())
	return t
}

// orderBy renders the SQL equivalent of sortClients.
func orderBy(d Dialect, spec *SortSpec) string {
	col, asc := spec.resolve()
	dir := "ASC"
	if !asc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", d.OrderKey(col, col == SortLastName), dir)
}
