// package repositories provides persistence for client records behind one contract.
//
// File repositories (JSON, YAML) and the SQL repository implement [Repository];
// the filter/sort decorators add predicate-based paging on top of either.
package repositories

import (
	"context"
	"fmt"
	"math"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
)

// Repository is the storage-independent client contract.
type Repository interface {
	// ReadAll validates every stored record. Strict mode fails on the first invalid record.
	ReadAll(ctx context.Context, tolerant bool) ([]*models.Client, []models.RecordError, error)
	// GetByID returns the client or nil with a NotFound note. DuplicateId is reported as a note.
	GetByID(ctx context.Context, id int64) (*models.Client, models.Notes, error)
	// GetKNShortList returns the 1-based page k of size n as short views.
	GetKNShortList(ctx context.Context, k, n int, prefer models.ContactType) ([]*models.ClientShort, error)
	SortByLastName(ctx context.Context, ascending bool) ([]*models.Client, error)
	AddClient(ctx context.Context, src models.Source) (*models.Client, error)
	ReplaceByID(ctx context.Context, id int64, src models.Source) (*models.Client, error)
	// DeleteByID removes exactly one record. NotFound and DuplicateId are reported as notes.
	DeleteByID(ctx context.Context, id int64) (*models.Client, models.Notes, error)
	GetCount(ctx context.Context) (int, error)
}

// FilterSorter is a [Repository] with filtered paging and counting.
type FilterSorter interface {
	Repository
	FilteredShortList(ctx context.Context, k, n int, filter *Filter, sort *SortSpec, prefer models.ContactType) ([]*models.ClientShort, error)
	FilteredCount(ctx context.Context, filter *Filter) (int, error)
}

func checkID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be a positive integer, got %d", shared.ErrInvalidArgument, id)
	}
	return nil
}

func checkPage(k, n int) error {
	if k <= 0 || n <= 0 {
		return fmt.Errorf("%w: k and n must be positive integers, got k=%d n=%d", shared.ErrInvalidArgument, k, n)
	}
	return nil
}

// pageBounds returns the slice bounds of page k (1-based) of size n over total items.
func pageBounds(k, n, total int) (start, end int) {
	if k-1 > total/n {
		return total, total
	}
	start = (k - 1) * n
	if n > total-start {
		return start, total
	}
	return start, start + n
}

// pageOffset returns the row offset of page k, or false when the offset overflows an int.
// Such a page lies past the end of any table.
func pageOffset(k, n int) (int, bool) {
	if k-1 > math.MaxInt/n {
		return 0, false
	}
	return (k - 1) * n, true
}

func toShorts(clients []*models.Client, prefer models.ContactType) []*models.ClientShort {
	out := make([]*models.ClientShort, 0, len(clients))
	for _, c := range clients {
		out = append(out, models.ShortOf(c, prefer))
	}
	return out
}

func notFoundNote(id int64, msg string) models.Note {
	return models.Note{ID: id, ErrorType: shared.KindNotFound, Message: msg}
}

func duplicateIDNote(id int64, msg string) models.Note {
	return models.Note{ID: id, ErrorType: shared.KindDuplicateID, Message: msg}
}
