package repositories

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
	tu "github.com/desertthunder/clientbook/internal/testing"
	"github.com/desertthunder/clientbook/internal/validator"
)

func TestMain(m *testing.M) {
	restore := validator.SetClock(func() time.Time { return tu.Today })
	code := m.Run()
	restore()
	os.Exit(code)
}

type backendCase struct {
	name    string
	backend Backend
	file    string
}

func backends() []backendCase {
	return []backendCase{
		{name: "json", backend: NewJSONBackend(), file: "clients.json"},
		{name: "yaml", backend: NewYAMLBackend(), file: "clients.yaml"},
	}
}

// seedFile writes records as the raw source and returns a repository over it.
func seedFile(t *testing.T, bc backendCase, records []any, opts FileOpts) *FileRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), bc.file)
	if records != nil {
		require.NoError(t, bc.backend.WriteArray(path, records, true))
	}
	return NewFileRepository(bc.backend, path, opts)
}

func sampleRaw() []any {
	return tu.Records(tu.SampleRecords()...)
}

func ids[T interface{ ID() int64 }](items []T) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

func TestDerivePath(t *testing.T) {
	tc := []struct {
		backend Backend
		base    string
		want    string
	}{
		{NewJSONBackend(), "data/clients.json", "data/clients_clean.json"},
		{NewJSONBackend(), "data.txt", "data.txt_clean.json"},
		{NewYAMLBackend(), "clients.yml", "clients_clean.yml"},
		{NewYAMLBackend(), "clients.YAML", "clients_clean.YAML"},
		{NewYAMLBackend(), "clients", "clients_clean.yaml"},
	}
	for _, tt := range tc {
		if got := tt.backend.DerivePath(tt.base, SuffixClean); got != tt.want {
			t.Errorf("DerivePath(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestBackendFormats(t *testing.T) {
	dir := t.TempDir()

	t.Run("absent source", func(t *testing.T) {
		_, err := NewJSONBackend().ReadArray(filepath.Join(dir, "missing.json"))
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("json top level object", func(t *testing.T) {
		path := filepath.Join(dir, "object.json")
		tu.MustWriteFile(t, path, `{"id": 1}`)
		_, err := NewJSONBackend().ReadArray(path)
		assert.ErrorIs(t, err, shared.ErrFormat)
	})

	t.Run("json trailing data", func(t *testing.T) {
		path := filepath.Join(dir, "trailing.json")
		tu.MustWriteFile(t, path, `[] []`)
		_, err := NewJSONBackend().ReadArray(path)
		assert.ErrorIs(t, err, shared.ErrFormat)
	})

	t.Run("empty yaml is an empty array", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		tu.MustWriteFile(t, path, "")
		items, err := NewYAMLBackend().ReadArray(path)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("yaml scalar", func(t *testing.T) {
		path := filepath.Join(dir, "scalar.yaml")
		tu.MustWriteFile(t, path, "just text\n")
		_, err := NewYAMLBackend().ReadArray(path)
		assert.ErrorIs(t, err, shared.ErrFormat)
	})

	t.Run("yaml flow style when not pretty", func(t *testing.T) {
		path := filepath.Join(dir, "flow.yaml")
		require.NoError(t, NewYAMLBackend().WriteArray(path, []any{map[string]any{"id": 1}}, false))
		assert.Contains(t, tu.MustReadFile(t, path), "[{")
	})

	t.Run("json keeps non-ascii and does not escape html", func(t *testing.T) {
		path := filepath.Join(dir, "unicode.json")
		require.NoError(t, NewJSONBackend().WriteArray(path, []any{map[string]any{"address": "Москва <центр>"}}, false))
		assert.Contains(t, tu.MustReadFile(t, path), "Москва <центр>")
	})

	t.Run("writes leave no temp files", func(t *testing.T) {
		sub := filepath.Join(dir, "atomic")
		require.NoError(t, NewJSONBackend().WriteArray(filepath.Join(sub, "a.json"), nil, true))
		entries, err := os.ReadDir(sub)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestFileRepositoryReadAll(t *testing.T) {
	ctx := context.Background()
	invalid := tu.WithFields(tu.NewRecord("Broken", 6), map[string]any{"id": 6, "phone": "123"})

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			records := append(sampleRaw(), invalid, 42)
			repo := seedFile(t, bc, records, FileOpts{})

			t.Run("tolerant collects errors", func(t *testing.T) {
				ok, errs, err := repo.ReadAll(ctx, true)
				require.NoError(t, err)
				assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(ok))
				require.Len(t, errs, 2)
				assert.Equal(t, 5, errs[0].Index)
				assert.Equal(t, 6, errs[0].DisplayIndex)
				assert.Equal(t, shared.KindValidation, errs[0].ErrorType)
				assert.Contains(t, errs[0].Message, "phone")
				assert.Nil(t, errs[1].ID)
				assert.Equal(t, shared.KindValidation, errs[1].ErrorType)
			})

			t.Run("strict stops at the first failure", func(t *testing.T) {
				_, _, err := repo.ReadAll(ctx, false)
				require.ErrorIs(t, err, shared.ErrValidation)
				assert.Contains(t, err.Error(), "element #6 (id=6)")
			})

			t.Run("absent source is empty", func(t *testing.T) {
				empty := seedFile(t, bc, nil, FileOpts{})
				ok, errs, err := empty.ReadAll(ctx, false)
				require.NoError(t, err)
				assert.Empty(t, ok)
				assert.Empty(t, errs)
			})
		})
	}
}

func TestFileRepositoryArtifacts(t *testing.T) {
	ctx := context.Background()
	invalid := tu.WithFields(tu.NewRecord("Broken", 6), map[string]any{"id": 6, "birth_date": "31-02-1990"})

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			repo := seedFile(t, bc, append(sampleRaw(), invalid), FileOpts{Pretty: true})

			res, err := repo.WriteArtifacts(ctx)
			require.NoError(t, err)
			assert.Len(t, res.Clients, 5)
			assert.Len(t, res.Errors, 1)

			snapshot, err := bc.backend.ReadArray(res.SnapshotPath)
			require.NoError(t, err)
			assert.Len(t, snapshot, 6)

			clean, err := bc.backend.ReadArray(res.CleanPath)
			require.NoError(t, err)
			assert.Len(t, clean, 5)

			assert.Contains(t, res.Errors[0].Message, "non-existent date")
			errDoc := tu.MustReadFile(t, res.ErrorsPath)
			assert.Contains(t, errDoc, filepath.Base(repo.Path()))
			assert.Contains(t, errDoc, shared.KindValidation)

			n, err := repo.GetCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
		})
	}

	t.Run("snapshot needs a source", func(t *testing.T) {
		repo := seedFile(t, backends()[0], nil, FileOpts{})
		_, err := repo.WriteArtifacts(ctx)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestFileRepositoryGetByID(t *testing.T) {
	ctx := context.Background()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			t.Run("raw when clean is absent", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				c, notes, err := repo.GetByID(ctx, 3)
				require.NoError(t, err)
				require.NotNil(t, c)
				assert.Empty(t, notes)
				assert.Equal(t, "сидорова", c.LastName())
			})

			t.Run("clean first then raw fallback", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, err := repo.WriteArtifacts(ctx)
				require.NoError(t, err)

				extra := tu.WithFields(tu.NewRecord("Later", 7), map[string]any{"id": 9})
				require.NoError(t, bc.backend.WriteArray(repo.Path(), append(sampleRaw(), extra), true))

				c, _, err := repo.GetByID(ctx, 9)
				require.NoError(t, err)
				require.NotNil(t, c)
				assert.Equal(t, "Later", c.LastName())

				strict := NewFileRepository(bc.backend, repo.Path(), FileOpts{NoRawFallback: true})
				c, notes, err := strict.GetByID(ctx, 9)
				require.NoError(t, err)
				assert.Nil(t, c)
				assert.True(t, notes.Has(shared.KindNotFound))
			})

			t.Run("not found", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				c, notes, err := repo.GetByID(ctx, 100)
				require.NoError(t, err)
				assert.Nil(t, c)
				require.Len(t, notes, 1)
				assert.Equal(t, shared.KindNotFound, notes[0].ErrorType)
			})

			t.Run("duplicate id returns first with note", func(t *testing.T) {
				dup := tu.WithFields(tu.NewRecord("Twin", 8), map[string]any{"id": 2})
				repo := seedFile(t, bc, append(sampleRaw(), dup), FileOpts{})
				c, notes, err := repo.GetByID(ctx, 2)
				require.NoError(t, err)
				require.NotNil(t, c)
				assert.Equal(t, "Petrov", c.LastName())
				assert.True(t, notes.Has(shared.KindDuplicateID))
			})

			t.Run("non positive id", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, _, err := repo.GetByID(ctx, 0)
				assert.ErrorIs(t, err, shared.ErrInvalidArgument)
			})
		})
	}
}

func TestFileRepositoryPagingAndSorting(t *testing.T) {
	ctx := context.Background()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			repo := seedFile(t, bc, sampleRaw(), FileOpts{})

			page, err := repo.GetKNShortList(ctx, 2, 2, models.ContactPhone)
			require.NoError(t, err)
			assert.Equal(t, []int64{3, 4}, ids(page))

			page, err = repo.GetKNShortList(ctx, 3, 2, models.ContactEmail)
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, "olga.petrova@example.com", page[0].Contact())

			page, err = repo.GetKNShortList(ctx, 4, 2, models.ContactPhone)
			require.NoError(t, err)
			assert.Empty(t, page)

			page, err = repo.GetKNShortList(ctx, math.MaxInt, 2, models.ContactPhone)
			require.NoError(t, err)
			assert.Empty(t, page)

			page, err = repo.GetKNShortList(ctx, 1, math.MaxInt, models.ContactPhone)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(page))

			_, err = repo.GetKNShortList(ctx, 0, 2, models.ContactPhone)
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)

			asc, err := repo.SortByLastName(ctx, true)
			require.NoError(t, err)
			assert.Equal(t, []int64{4, 2, 5, 1, 3}, ids(asc))

			desc, err := repo.SortByLastName(ctx, false)
			require.NoError(t, err)
			assert.Equal(t, []int64{3, 1, 5, 2, 4}, ids(desc))
		})
	}

	t.Run("ties keep stored order", func(t *testing.T) {
		recs := tu.Records(
			tu.WithFields(tu.NewRecord("Same", 1), map[string]any{"id": 3}),
			tu.WithFields(tu.NewRecord("Same", 2), map[string]any{"id": 1}),
			tu.WithFields(tu.NewRecord("Same", 3), map[string]any{"id": 2}),
		)
		repo := seedFile(t, backends()[0], recs, FileOpts{})
		for _, ascending := range []bool{true, false} {
			got, err := repo.SortByLastName(ctx, ascending)
			require.NoError(t, err)
			assert.Equal(t, []int64{3, 1, 2}, ids(got))
		}
	})
}

func TestFileRepositoryMutations(t *testing.T) {
	ctx := context.Background()

	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			t.Run("add assigns max id plus one", func(t *testing.T) {
				recs := append(sampleRaw(), tu.WithFields(tu.NewRecord("Gap", 7), map[string]any{"id": 10, "phone": "bad"}))
				repo := seedFile(t, bc, recs, FileOpts{})

				c, err := repo.AddClient(ctx, models.FromMapping(tu.NewRecord("Newman", 1)))
				require.NoError(t, err)
				assert.Equal(t, int64(11), c.ID())

				raw, err := bc.backend.ReadArray(repo.Path())
				require.NoError(t, err)
				assert.Len(t, raw, 7)
			})

			t.Run("add to absent source", func(t *testing.T) {
				repo := seedFile(t, bc, nil, FileOpts{})
				c, err := repo.AddClient(ctx, models.FromMapping(tu.NewRecord("First", 1)))
				require.NoError(t, err)
				assert.Equal(t, int64(1), c.ID())
			})

			t.Run("add rejects natural key duplicate", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				dup := tu.WithFields(tu.SampleRecords()[1], map[string]any{"id": nil, "address": "elsewhere"})
				_, err := repo.AddClient(ctx, models.FromMapping(dup))
				require.ErrorIs(t, err, shared.ErrDuplicateClient)
				assert.Contains(t, err.Error(), "id=2")
			})

			t.Run("add rejects invalid payload", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, err := repo.AddClient(ctx, models.FromMapping(tu.WithFields(tu.NewRecord("X", 1), map[string]any{"email": "nope"})))
				assert.ErrorIs(t, err, shared.ErrValidation)
				n, err := repo.GetCount(ctx)
				require.NoError(t, err)
				assert.Equal(t, 5, n)
			})

			t.Run("add refreshes clean artifact", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, err := repo.WriteArtifacts(ctx)
				require.NoError(t, err)
				_, err = repo.AddClient(ctx, models.FromDelimited("Newman;Nik;Nikovich;7011;100001;10-10-1990;+79000000001;n@example.com;Here", ";"))
				require.NoError(t, err)
				n, err := repo.GetCount(ctx)
				require.NoError(t, err)
				assert.Equal(t, 6, n)
			})

			t.Run("replace keeps position and id", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				payload := tu.WithFields(tu.SampleRecords()[2], map[string]any{"id": nil, "address": "Тула, Мира 2"})
				c, err := repo.ReplaceByID(ctx, 3, models.FromMapping(payload))
				require.NoError(t, err)
				assert.Equal(t, int64(3), c.ID())

				ok, _, err := repo.ReadAll(ctx, false)
				require.NoError(t, err)
				assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(ok))
				assert.Equal(t, "Тула, Мира 2", ok[2].Address())
			})

			t.Run("replace rejects mismatched id", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, err := repo.ReplaceByID(ctx, 3, models.FromMapping(tu.WithFields(tu.SampleRecords()[2], map[string]any{"id": 4})))
				assert.ErrorIs(t, err, shared.ErrMismatchedID)
			})

			t.Run("replace missing id", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				_, err := repo.ReplaceByID(ctx, 99, models.FromMapping(tu.NewRecord("Ghost", 1)))
				assert.ErrorIs(t, err, shared.ErrNotFound)
			})

			t.Run("replace with another client's natural key", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				payload := tu.WithFields(tu.SampleRecords()[1], map[string]any{"id": nil})
				_, err := repo.ReplaceByID(ctx, 3, models.FromMapping(payload))
				assert.ErrorIs(t, err, shared.ErrDuplicateClient)
			})

			t.Run("duplicate ids block mutations", func(t *testing.T) {
				dup := tu.WithFields(tu.NewRecord("Twin", 8), map[string]any{"id": 2})
				repo := seedFile(t, bc, append(sampleRaw(), dup), FileOpts{})
				before := tu.MustReadFile(t, repo.Path())

				_, err := repo.ReplaceByID(ctx, 2, models.FromMapping(tu.NewRecord("Other", 9)))
				assert.ErrorIs(t, err, shared.ErrDuplicateID)

				c, notes, err := repo.DeleteByID(ctx, 2)
				require.NoError(t, err)
				assert.Nil(t, c)
				assert.True(t, notes.Has(shared.KindDuplicateID))

				assert.Equal(t, before, tu.MustReadFile(t, repo.Path()))
			})

			t.Run("delete", func(t *testing.T) {
				repo := seedFile(t, bc, sampleRaw(), FileOpts{})
				c, notes, err := repo.DeleteByID(ctx, 4)
				require.NoError(t, err)
				assert.Empty(t, notes)
				require.NotNil(t, c)
				assert.Equal(t, "Abramov", c.LastName())

				c, notes, err = repo.DeleteByID(ctx, 4)
				require.NoError(t, err)
				assert.Nil(t, c)
				assert.True(t, notes.Has(shared.KindNotFound))

				n, err := repo.GetCount(ctx)
				require.NoError(t, err)
				assert.Equal(t, 4, n)
			})

			t.Run("delete invalid record", func(t *testing.T) {
				bad := tu.WithFields(tu.NewRecord("Broken", 6), map[string]any{"id": 7, "phone": "123"})
				repo := seedFile(t, bc, append(sampleRaw(), bad), FileOpts{})
				c, notes, err := repo.DeleteByID(ctx, 7)
				require.NoError(t, err)
				assert.Nil(t, c)
				require.Len(t, notes, 1)
				assert.Equal(t, shared.KindValidation, notes[0].ErrorType)

				raw, err := bc.backend.ReadArray(repo.Path())
				require.NoError(t, err)
				assert.Len(t, raw, 5)
			})

			t.Run("delete from absent source", func(t *testing.T) {
				repo := seedFile(t, bc, nil, FileOpts{})
				_, notes, err := repo.DeleteByID(ctx, 1)
				require.NoError(t, err)
				assert.True(t, notes.Has(shared.KindNotFound))
			})
		})
	}
}

func TestFileRepositoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := seedFile(t, backends()[0], sampleRaw(), FileOpts{})
	_, _, err := repo.ReadAll(ctx, true)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = repo.AddClient(ctx, models.FromMapping(tu.NewRecord("Late", 1)))
	assert.ErrorIs(t, err, context.Canceled)
}
