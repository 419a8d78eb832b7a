package repositories

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
	tu "github.com/desertthunder/clientbook/internal/testing"
)

// newSQLiteRepo opens a migrated SQLite database in a temp dir.
func newSQLiteRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := shared.NewDatabase(shared.DriverSQLite, filepath.Join(t.TempDir(), "clients.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	shared.ConfigureDatabase(db, 1, 1)

	repo := NewSQLRepository(db, SQLite, nil)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

// seedSQL imports the sample records keeping their ids.
func seedSQL(t *testing.T, repo *SQLRepository) {
	t.Helper()
	summary, err := repo.ImportRecords(context.Background(), sampleRaw(), ImportOpts{PreserveIDs: true})
	require.NoError(t, err)
	require.Equal(t, 5, summary.Inserted)
}

func TestSQLRepositoryReads(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	seedSQL(t, repo)

	t.Run("GetByID", func(t *testing.T) {
		c, notes, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, notes)
		require.NotNil(t, c)
		assert.Equal(t, "Иванов", c.LastName())
		assert.Equal(t, "01-02-1990", c.BirthDate())
		assert.Equal(t, "4510 123456", c.Passport())

		c, notes, err = repo.GetByID(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, c)
		assert.True(t, notes.Has(shared.KindNotFound))

		_, _, err = repo.GetByID(ctx, -1)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("GetKNShortList", func(t *testing.T) {
		page, err := repo.GetKNShortList(ctx, 2, 2, models.ContactPhone)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, ids(page))

		page, err = repo.GetKNShortList(ctx, 9, 2, models.ContactPhone)
		require.NoError(t, err)
		assert.Empty(t, page)

		page, err = repo.GetKNShortList(ctx, math.MaxInt, 2, models.ContactPhone)
		require.NoError(t, err)
		assert.Empty(t, page)

		_, err = repo.GetKNShortList(ctx, 1, 0, models.ContactPhone)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("SortByLastName matches byte order", func(t *testing.T) {
		asc, err := repo.SortByLastName(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 2, 5, 1, 3}, ids(asc))

		desc, err := repo.SortByLastName(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 1, 5, 2, 4}, ids(desc))
	})

	t.Run("GetCount", func(t *testing.T) {
		n, err := repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})
}

func TestSQLRepositoryReadAllInvalidRow(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	seedSQL(t, repo)

	_, err := repo.db.ExecContext(ctx, `INSERT INTO clients (id, last_name, first_name, middle_name, passport_series,
		passport_number, birth_date, phone, email, address)
		VALUES (6, 'Broken', 'Test', 'Testovich', '7066', '100006', '1990-10-10', '123', 'b@example.com', 'Nowhere')`)
	require.NoError(t, err)

	ok, errs, err := repo.ReadAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, ok, 5)
	require.Len(t, errs, 1)
	assert.Equal(t, int64(6), errs[0].ID)
	assert.Equal(t, shared.KindValidation, errs[0].ErrorType)

	_, _, err = repo.ReadAll(ctx, false)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "id=6")

	page, err := repo.GetKNShortList(ctx, 1, 10, models.ContactPhone)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	c, notes, err := repo.DeleteByID(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.True(t, notes.Has(shared.KindValidation))
}

func TestSQLRepositoryMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("add assigns sequence id", func(t *testing.T) {
		repo := newSQLiteRepo(t)
		seedSQL(t, repo)
		c, err := repo.AddClient(ctx, models.FromMapping(tu.NewRecord("Newman", 1)))
		require.NoError(t, err)
		assert.Equal(t, int64(6), c.ID())

		got, _, err := repo.GetByID(ctx, 6)
		require.NoError(t, err)
		assert.True(t, models.SameClient(c, got))
	})

	t.Run("duplicate passport is DuplicateClient", func(t *testing.T) {
		repo := newSQLiteRepo(t)
		seedSQL(t, repo)
		dup := tu.WithFields(tu.SampleRecords()[0], map[string]any{"id": nil})
		_, err := repo.AddClient(ctx, models.FromMapping(dup))
		require.ErrorIs(t, err, shared.ErrDuplicateClient)
		assert.Equal(t, shared.KindDuplicateClient, shared.ErrorKind(err))
	})

	t.Run("invalid payload", func(t *testing.T) {
		repo := newSQLiteRepo(t)
		_, err := repo.AddClient(ctx, models.FromMapping(tu.WithFields(tu.NewRecord("X", 1), map[string]any{"passport_series": "12"})))
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("replace", func(t *testing.T) {
		repo := newSQLiteRepo(t)
		seedSQL(t, repo)

		payload := tu.WithFields(tu.SampleRecords()[1], map[string]any{"id": nil, "address": "Kazan, Kremlin 1"})
		c, err := repo.ReplaceByID(ctx, 2, models.FromMapping(payload))
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.ID())

		got, _, err := repo.GetByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "Kazan, Kremlin 1", got.Address())

		_, err = repo.ReplaceByID(ctx, 77, models.FromMapping(tu.NewRecord("Ghost", 3)))
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.ReplaceByID(ctx, 2, models.FromMapping(tu.WithFields(payload, map[string]any{"id": 3})))
		assert.ErrorIs(t, err, shared.ErrMismatchedID)

		taken := tu.WithFields(tu.SampleRecords()[0], map[string]any{"id": nil})
		_, err = repo.ReplaceByID(ctx, 2, models.FromMapping(taken))
		assert.ErrorIs(t, err, shared.ErrDuplicateClient)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newSQLiteRepo(t)
		seedSQL(t, repo)

		c, notes, err := repo.DeleteByID(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, notes)
		require.NotNil(t, c)
		assert.Equal(t, "petrova", c.LastName())

		c, notes, err = repo.DeleteByID(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, c)
		assert.True(t, notes.Has(shared.KindNotFound))

		n, err := repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}

func TestSQLRepositoryImport(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	seedSQL(t, repo)

	records := tu.Records(
		tu.SampleRecords()[0],
		tu.WithFields(tu.NewRecord("Fresh", 2), map[string]any{"id": 20}),
		tu.WithFields(tu.NewRecord("Broken", 3), map[string]any{"email": "broken"}),
	)
	records = append(records, "not an object")

	summary, err := repo.ImportRecords(ctx, records, ImportOpts{PreserveIDs: true})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.SkippedConflict)
	assert.Equal(t, 2, summary.Invalid)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, 3, summary.Errors[0].DisplayIndex)

	c, _, err := repo.GetByID(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, c)

	next, err := repo.AddClient(ctx, models.FromMapping(tu.NewRecord("After", 4)))
	require.NoError(t, err)
	assert.Equal(t, int64(21), next.ID())

	t.Run("replace", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "clients.yaml")
		backend := NewYAMLBackend()
		require.NoError(t, backend.WriteArray(path, tu.Records(tu.SampleRecords()[1:3]...), true))

		summary, err := repo.ImportFile(ctx, backend, path, ImportOpts{Replace: true})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Inserted)

		n, err := repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, _, err := repo.ReadAll(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids(all), "ids restart without PreserveIDs")
	})
}
