package repositories

import (
	"context"

	"github.com/desertthunder/clientbook/internal/models"
)

// FileFilterSort adds in-memory filtering and ordering to a [FileRepository].
// Every other [Repository] call goes straight to the wrapped repository.
type FileFilterSort struct {
	*FileRepository
}

func NewFileFilterSort(repo *FileRepository) *FileFilterSort {
	return &FileFilterSort{FileRepository: repo}
}

// FilteredShortList filters the clean-or-raw clients, orders them and returns page k of size n.
func (d *FileFilterSort) FilteredShortList(ctx context.Context, k, n int, filter *Filter, sort *SortSpec, prefer models.ContactType) ([]*models.ClientShort, error) {
	if err := checkPage(k, n); err != nil {
		return nil, err
	}
	clients, err := d.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortClients(clients, sort)

	start, end := pageBounds(k, n, len(clients))
	return toShorts(clients[start:end], prefer), nil
}

func (d *FileFilterSort) FilteredCount(ctx context.Context, filter *Filter) (int, error) {
	clients, err := d.filtered(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(clients), nil
}

func (d *FileFilterSort) filtered(ctx context.Context, filter *Filter) ([]*models.Client, error) {
	crit, err := filter.compile()
	if err != nil {
		return nil, err
	}
	clients, err := d.cleanOrRaw(ctx)
	if err != nil {
		return nil, err
	}

	out := clients[:0]
	for _, c := range clients {
		if crit.match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}
