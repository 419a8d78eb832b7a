package repositories

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
)

func TestSortSpecResolve(t *testing.T) {
	tc := []struct {
		spec    *SortSpec
		wantCol string
		wantAsc bool
	}{
		{nil, SortID, true},
		{&SortSpec{By: "birth_date", Asc: true}, SortBirthDate, true},
		{&SortSpec{By: " Last_Name "}, SortLastName, false},
		{&SortSpec{By: "email", Asc: true}, SortID, true},
		{&SortSpec{By: "id; DROP TABLE clients"}, SortID, false},
	}
	for _, tt := range tc {
		col, asc := tt.spec.resolve()
		if col != tt.wantCol || asc != tt.wantAsc {
			t.Errorf("resolve(%+v) = (%s, %v), want (%s, %v)", tt.spec, col, asc, tt.wantCol, tt.wantAsc)
		}
	}
}

// TestFilterSortEquivalence runs identical filters against the file and SQLite decorators
// over the same records and requires identical counts and id sequences.
func TestFilterSortEquivalence(t *testing.T) {
	ctx := context.Background()

	file := NewFileFilterSort(seedFile(t, backends()[0], sampleRaw(), FileOpts{}))
	repo := newSQLiteRepo(t)
	seedSQL(t, repo)
	db := NewDBFilterSort(repo)

	tc := []struct {
		name   string
		filter *Filter
		sort   *SortSpec
		k, n   int
		want   []int64
	}{
		{name: "no filter", want: []int64{1, 2, 3, 4, 5}},
		{name: "last name substring any case", filter: &Filter{LastName: "PETR"}, sort: &SortSpec{By: SortLastName, Asc: true}, want: []int64{2, 5}},
		{name: "cyrillic case folding", filter: &Filter{LastName: "ИВА"}, want: []int64{1}},
		{name: "cyrillic lower stored", filter: &Filter{LastName: "Сидор"}, want: []int64{3}},
		{name: "first name", filter: &Filter{FirstName: "ol"}, want: []int64{4, 5}},
		{name: "middle name", filter: &Filter{MiddleName: "ivan"}, want: []int64{5}},
		{name: "email", filter: &Filter{Email: "EXAMPLE.com"}, want: []int64{1, 5}},
		{name: "phone", filter: &Filter{Phone: "+7999"}, want: []int64{1, 4}},
		{name: "passport series trimmed", filter: &Filter{PassportSeries: " 4510 "}, want: []int64{1, 4}},
		{name: "passport number", filter: &Filter{PassportNumber: "123456"}, want: []int64{1}},
		{name: "passport partial is not a match", filter: &Filter{PassportNumber: "1234"}, want: []int64{}},
		{name: "date range inclusive", filter: &Filter{BirthDateFrom: "15-07-1985", BirthDateTo: "30-12-2000"}, want: []int64{1, 2, 3, 4}},
		{name: "upper bound only", filter: &Filter{BirthDateTo: "15-07-1985"}, sort: &SortSpec{By: SortBirthDate}, want: []int64{2, 4, 5}},
		{name: "inverted range", filter: &Filter{BirthDateFrom: "01-01-2001", BirthDateTo: "01-01-1970"}, want: []int64{}},
		{name: "like metacharacters are literal", filter: &Filter{Email: "%"}, want: []int64{}},
		{name: "underscore is literal", filter: &Filter{Email: "_"}, want: []int64{}},
		{name: "combined", filter: &Filter{LastName: "petr", BirthDateFrom: "01-01-1980"}, want: []int64{2}},
		{name: "last name descending folded", sort: &SortSpec{By: SortLastName}, want: []int64{3, 1, 5, 2, 4}},
		{name: "id descending", sort: &SortSpec{By: SortID}, want: []int64{5, 4, 3, 2, 1}},
		{name: "unknown column falls back to id", sort: &SortSpec{By: "email", Asc: true}, want: []int64{1, 2, 3, 4, 5}},
		{name: "birth date page", sort: &SortSpec{By: SortBirthDate, Asc: true}, k: 2, n: 2, want: []int64{4, 1}},
		{name: "page past the end", k: 4, n: 2, want: []int64{}},
		{name: "page offset beyond int range", k: math.MaxInt, n: 2, want: []int64{}},
		{name: "filtered page offset beyond int range", filter: &Filter{LastName: "petr"}, k: math.MaxInt / 2, n: 3, want: []int64{}},
		{name: "page size beyond int range", k: 1, n: math.MaxInt, want: []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			k, n := tt.k, tt.n
			if k == 0 {
				k, n = 1, 10
			}

			fromFile, err := file.FilteredShortList(ctx, k, n, tt.filter, tt.sort, models.ContactPhone)
			require.NoError(t, err)
			fromDB, err := db.FilteredShortList(ctx, k, n, tt.filter, tt.sort, models.ContactPhone)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, ids(fromFile)); diff != "" {
				t.Errorf("file ids mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(ids(fromFile), ids(fromDB)); diff != "" {
				t.Errorf("file and db ids differ (-file +db):\n%s", diff)
			}

			fileRecs := make([]models.ShortRecord, len(fromFile))
			for i, s := range fromFile {
				fileRecs[i] = s.Record()
			}
			dbRecs := make([]models.ShortRecord, len(fromDB))
			for i, s := range fromDB {
				dbRecs[i] = s.Record()
			}
			if diff := cmp.Diff(fileRecs, dbRecs); diff != "" {
				t.Errorf("short views differ (-file +db):\n%s", diff)
			}

			fileCount, err := file.FilteredCount(ctx, tt.filter)
			require.NoError(t, err)
			dbCount, err := db.FilteredCount(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, fileCount, dbCount)
		})
	}
}

func TestFilterInvalidBounds(t *testing.T) {
	ctx := context.Background()
	file := NewFileFilterSort(seedFile(t, backends()[1], sampleRaw(), FileOpts{}))
	db := NewDBFilterSort(newSQLiteRepo(t))

	for _, f := range []*Filter{{BirthDateFrom: "1990-01-01"}, {BirthDateTo: "31-02-2000"}} {
		_, err := file.FilteredCount(ctx, f)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		_, err = db.FilteredCount(ctx, f)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		_, err = db.FilteredShortList(ctx, 1, 5, f, nil, models.ContactEmail)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	}
}

func TestDecoratorsProxyRepository(t *testing.T) {
	var _ FilterSorter = NewFileFilterSort(nil)
	var _ FilterSorter = NewDBFilterSort(nil)

	ctx := context.Background()
	file := NewFileFilterSort(seedFile(t, backends()[0], sampleRaw(), FileOpts{}))
	n, err := file.GetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	c, err := file.AddClient(ctx, models.FromText("Newman;Nik;Nikovich;7011;100001;10-10-1990;+79000000001;n@example.com;Here"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), c.ID())

	got, err := file.FilteredCount(ctx, &Filter{LastName: "newman"})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}
