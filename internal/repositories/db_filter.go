package repositories

import (
	"context"

	"github.com/desertthunder/clientbook/internal/models"
)

// DBFilterSort translates [Filter] and [SortSpec] into parameterized SQL over a [SQLRepository].
// Results and counts match [FileFilterSort] for the same data.
type DBFilterSort struct {
	*SQLRepository
}

func NewDBFilterSort(repo *SQLRepository) *DBFilterSort {
	return &DBFilterSort{SQLRepository: repo}
}

func (d *DBFilterSort) FilteredShortList(ctx context.Context, k, n int, filter *Filter, sort *SortSpec, prefer models.ContactType) ([]*models.ClientShort, error) {
	if err := checkPage(k, n); err != nil {
		return nil, err
	}
	crit, err := filter.compile()
	if err != nil {
		return nil, err
	}

	offset, ok := pageOffset(k, n)
	if !ok {
		return []*models.ClientShort{}, nil
	}

	where, args := crit.where(d.dialect)
	query := "SELECT " + clientColumns + " FROM clients" + where + orderBy(d.dialect, sort) + " LIMIT ? OFFSET ?"
	args = append(args, n, offset)

	clients, err := d.queryClients(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return toShorts(clients, prefer), nil
}

func (d *DBFilterSort) FilteredCount(ctx context.Context, filter *Filter) (int, error) {
	crit, err := filter.compile()
	if err != nil {
		return 0, err
	}
	where, args := crit.where(d.dialect)
	return d.count(ctx, "SELECT COUNT(*) FROM clients"+where, args...)
}
