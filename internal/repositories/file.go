package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
)

// Companion artifact suffixes.
const (
	SuffixClean    = "_clean"
	SuffixSnapshot = "_snapshot"
	SuffixErrors   = "_errors"
)

// FileOpts configures a [FileRepository].
type FileOpts struct {
	Logger *log.Logger
	// Pretty indents JSON and uses block style YAML.
	Pretty bool
	// NoRawFallback stops GetByID at the _clean artifact when it exists.
	NoRawFallback bool
}

// FileRepository implements [Repository] over an array-of-objects file.
//
// It holds only its path and options; every call opens, fully reads or rewrites, and closes the file.
type FileRepository struct {
	path        string
	backend     Backend
	logger      *log.Logger
	pretty      bool
	rawFallback bool
}

// LoadResult is the outcome of [FileRepository.WriteArtifacts].
type LoadResult struct {
	Clients      []*models.Client
	Errors       []models.RecordError
	SnapshotPath string
	CleanPath    string
	ErrorsPath   string
}

// errorsDocument is the layout of the _errors artifact.
type errorsDocument struct {
	Errors []models.RecordError `json:"errors" yaml:"errors"`
	Source string               `json:"source" yaml:"source"`
}

// NewFileRepository creates a [FileRepository] for path using backend.
func NewFileRepository(backend Backend, path string, opts FileOpts) *FileRepository {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	return &FileRepository{
		path:        path,
		backend:     backend,
		logger:      shared.WithLogger(opts.Logger, "repo", backend.Name(), "path", path),
		pretty:      opts.Pretty,
		rawFallback: !opts.NoRawFallback,
	}
}

// NewJSONRepository creates a [FileRepository] backed by a JSON array.
func NewJSONRepository(path string, opts FileOpts) *FileRepository {
	return NewFileRepository(NewJSONBackend(), path, opts)
}

// NewYAMLRepository creates a [FileRepository] backed by a YAML sequence.
func NewYAMLRepository(path string, opts FileOpts) *FileRepository {
	return NewFileRepository(NewYAMLBackend(), path, opts)
}

func (r *FileRepository) Path() string         { return r.path }
func (r *FileRepository) Backend() Backend     { return r.backend }
func (r *FileRepository) CleanPath() string    { return r.backend.DerivePath(r.path, SuffixClean) }
func (r *FileRepository) SnapshotPath() string { return r.backend.DerivePath(r.path, SuffixSnapshot) }
func (r *FileRepository) ErrorsPath() string   { return r.backend.DerivePath(r.path, SuffixErrors) }

// ReadAll validates every record of the source. An absent source yields an empty result.
func (r *FileRepository) ReadAll(ctx context.Context, tolerant bool) ([]*models.Client, []models.RecordError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	records, err := r.backend.ReadArray(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*models.Client{}, []models.RecordError{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	ok := make([]*models.Client, 0, len(records))
	errs := []models.RecordError{}
	for i, item := range records {
		c, verr := clientFromRaw(item)
		if verr == nil {
			ok = append(ok, c)
			continue
		}

		rerr := models.RecordError{
			Index:        i,
			DisplayIndex: i + 1,
			ID:           rawID(item),
			ErrorType:    shared.ErrorKind(verr),
			Message:      verr.Error(),
		}
		if !tolerant {
			where := fmt.Sprintf("element #%d", rerr.DisplayIndex)
			if rerr.ID != nil {
				where += fmt.Sprintf(" (id=%v)", rerr.ID)
			}
			return nil, nil, fmt.Errorf("failed to read %s: %s: %w", r.path, where, verr)
		}
		r.logger.Warn("skipping invalid record", "index", rerr.DisplayIndex, "id", rerr.ID, "error", verr)
		errs = append(errs, rerr)
	}
	return ok, errs, nil
}

// WriteSnapshot copies the raw source verbatim to the _snapshot artifact.
func (r *FileRepository) WriteSnapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	records, err := r.backend.ReadArray(r.path)
	if err != nil {
		return "", err
	}
	out := r.SnapshotPath()
	if err := r.backend.WriteArray(out, records, r.pretty); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	r.logger.Debug("snapshot written", "out", out, "records", len(records))
	return out, nil
}

// WriteAllOK writes only the given validated clients to the _clean artifact.
func (r *FileRepository) WriteAllOK(ctx context.Context, clients []*models.Client) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := r.CleanPath()
	if err := r.backend.WriteArray(out, clientRecords(clients), r.pretty); err != nil {
		return "", fmt.Errorf("failed to write clean records: %w", err)
	}
	r.logger.Debug("clean records written", "out", out, "records", len(clients))
	return out, nil
}

// WriteErrors writes {errors, source} to the _errors artifact.
func (r *FileRepository) WriteErrors(ctx context.Context, errs []models.RecordError) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if errs == nil {
		errs = []models.RecordError{}
	}
	out := r.ErrorsPath()
	doc := errorsDocument{Errors: errs, Source: filepath.Base(r.path)}
	if err := r.backend.WriteDocument(out, doc, r.pretty); err != nil {
		return "", fmt.Errorf("failed to write errors: %w", err)
	}
	return out, nil
}

// WriteArtifacts snapshots the source, validates it tolerantly and writes the _clean and _errors artifacts.
func (r *FileRepository) WriteArtifacts(ctx context.Context) (*LoadResult, error) {
	snapshot, err := r.WriteSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	ok, errs, err := r.ReadAll(ctx, true)
	if err != nil {
		return nil, err
	}

	clean, err := r.WriteAllOK(ctx, ok)
	if err != nil {
		return nil, err
	}

	errPath, err := r.WriteErrors(ctx, errs)
	if err != nil {
		return nil, err
	}

	r.logger.Info("artifacts written", "ok", len(ok), "errors", len(errs))
	return &LoadResult{Clients: ok, Errors: errs, SnapshotPath: snapshot, CleanPath: clean, ErrorsPath: errPath}, nil
}

// GetByID searches the _clean artifact first and the raw source second.
func (r *FileRepository) GetByID(ctx context.Context, id int64) (*models.Client, models.Notes, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	records, err := r.backend.ReadArray(r.CleanPath())
	if errors.Is(err, fs.ErrNotExist) {
		c, notes, err := r.findRaw(ctx, id)
		if err != nil || c != nil {
			return c, notes, err
		}
		return nil, append(notes, notFoundNote(id, fmt.Sprintf("client with id=%d not found (clean artifact absent)", id))), nil
	}
	if err != nil {
		return nil, nil, err
	}

	var notes models.Notes
	if idxs := indexesOf(records, id); len(idxs) > 0 {
		if len(idxs) > 1 {
			notes = append(notes, duplicateIDNote(id, fmt.Sprintf("%d records with id=%d in clean records; returning the first", len(idxs), id)))
		}
		c, err := clientFromRaw(records[idxs[0]])
		if err != nil {
			return nil, notes, fmt.Errorf("invalid clean record with id=%d: %w", id, err)
		}
		return c, notes, nil
	}

	if r.rawFallback {
		c, rawNotes, err := r.findRaw(ctx, id)
		if err != nil || c != nil {
			return c, append(notes, rawNotes...), err
		}
	}

	notes = append(notes, notFoundNote(id, fmt.Sprintf("client with id=%d not found in clean or source records", id)))
	return nil, notes, nil
}

// findRaw runs a tolerant validation pass over the source and returns the first client with id.
func (r *FileRepository) findRaw(ctx context.Context, id int64) (*models.Client, models.Notes, error) {
	ok, _, err := r.ReadAll(ctx, true)
	if err != nil {
		return nil, nil, err
	}

	var matches []*models.Client
	for _, c := range ok {
		if c.ID() == id {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, nil, nil
	}

	var notes models.Notes
	if len(matches) > 1 {
		notes = append(notes, duplicateIDNote(id, fmt.Sprintf("%d records with id=%d in source records; returning the first", len(matches), id)))
	}
	return matches[0], notes, nil
}

// GetKNShortList returns page k of size n from the _clean artifact, or from tolerant validation when it is absent.
func (r *FileRepository) GetKNShortList(ctx context.Context, k, n int, prefer models.ContactType) ([]*models.ClientShort, error) {
	if err := checkPage(k, n); err != nil {
		return nil, err
	}
	clients, err := r.cleanOrRaw(ctx)
	if err != nil {
		return nil, err
	}
	start, end := pageBounds(k, n, len(clients))
	return toShorts(clients[start:end], prefer), nil
}

// SortByLastName orders clients by last name exactly as stored. Ties keep their stored order.
func (r *FileRepository) SortByLastName(ctx context.Context, ascending bool) ([]*models.Client, error) {
	clients, err := r.cleanOrRaw(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(clients, func(a, b *models.Client) int {
		if ascending {
			return strings.Compare(a.LastName(), b.LastName())
		}
		return strings.Compare(b.LastName(), a.LastName())
	})
	return clients, nil
}

// AddClient validates src, rejects natural-key duplicates and appends it with id = max(raw ids) + 1.
func (r *FileRepository) AddClient(ctx context.Context, src models.Source) (*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := r.readRawOrEmpty()
	if err != nil {
		return nil, err
	}

	c, err := models.NewClient(src)
	if err != nil {
		return nil, err
	}

	existing, _, err := r.ReadAll(ctx, true)
	if err != nil {
		return nil, err
	}
	if dups := duplicatesOf(existing, c, 0); len(dups) > 0 {
		return nil, fmt.Errorf("%w: client already exists (id=%s)", shared.ErrDuplicateClient, joinIDs(dups))
	}

	c.SetID(maxRawID(records) + 1)
	records = append(records, c.Record())
	if err := r.backend.WriteArray(r.path, records, r.pretty); err != nil {
		return nil, fmt.Errorf("failed to add client: %w", err)
	}
	r.logger.Info("client added", "id", c.ID())

	if err := r.refreshClean(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// ReplaceByID overwrites the single raw record with id in place, keeping its position and id.
func (r *FileRepository) ReplaceByID(ctx context.Context, id int64, src models.Source) (*models.Client, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	found, notes, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		msg := fmt.Sprintf("client with id=%d not found", id)
		if len(notes) > 0 {
			msg = notes[len(notes)-1].Message
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, msg)
	}

	c, err := models.NewClient(src)
	if err != nil {
		return nil, err
	}
	if c.HasID() && c.ID() != id {
		return nil, fmt.Errorf("%w: payload id=%d != target id=%d", shared.ErrMismatchedID, c.ID(), id)
	}

	existing, _, err := r.ReadAll(ctx, true)
	if err != nil {
		return nil, err
	}
	if dups := duplicatesOf(existing, c, id); len(dups) > 0 {
		return nil, fmt.Errorf("%w: client already exists (id=%s)", shared.ErrDuplicateClient, joinIDs(dups))
	}

	records, err := r.backend.ReadArray(r.path)
	if err != nil {
		return nil, err
	}
	idxs := indexesOf(records, id)
	switch {
	case len(idxs) == 0:
		return nil, fmt.Errorf("%w: id=%d", shared.ErrNotFound, id)
	case len(idxs) > 1:
		return nil, fmt.Errorf("%w: %d records with id=%d; update cancelled", shared.ErrDuplicateID, len(idxs), id)
	}

	c.SetID(id)
	records[idxs[0]] = c.Record()
	if err := r.backend.WriteArray(r.path, records, r.pretty); err != nil {
		return nil, fmt.Errorf("failed to replace client: %w", err)
	}
	r.logger.Info("client replaced", "id", id)

	if err := r.refreshClean(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// DeleteByID removes the single raw record with id and returns it re-validated.
//
// A deleted record that no longer validates is still removed; the result is nil with a note.
func (r *FileRepository) DeleteByID(ctx context.Context, id int64) (*models.Client, models.Notes, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	records, err := r.backend.ReadArray(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.Notes{notFoundNote(id, fmt.Sprintf("source %s not found", r.path))}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	idxs := indexesOf(records, id)
	switch {
	case len(idxs) == 0:
		return nil, models.Notes{notFoundNote(id, fmt.Sprintf("client with id=%d not found", id))}, nil
	case len(idxs) > 1:
		return nil, models.Notes{duplicateIDNote(id, fmt.Sprintf("%d records with id=%d; delete cancelled", len(idxs), id))}, nil
	}

	removed := records[idxs[0]]
	records = slices.Delete(records, idxs[0], idxs[0]+1)
	if err := r.backend.WriteArray(r.path, records, r.pretty); err != nil {
		return nil, nil, fmt.Errorf("failed to delete client: %w", err)
	}
	r.logger.Info("client deleted", "id", id)

	if err := r.refreshClean(ctx); err != nil {
		return nil, nil, err
	}

	c, verr := clientFromRaw(removed)
	if verr != nil {
		return nil, models.Notes{{ID: id, ErrorType: shared.ErrorKind(verr), Message: "deleted, but the record was invalid: " + verr.Error()}}, nil
	}
	return c, nil, nil
}

// GetCount counts the _clean artifact, or valid source records when it is absent.
func (r *FileRepository) GetCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	records, err := r.backend.ReadArray(r.CleanPath())
	if err == nil {
		return len(records), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	ok, _, err := r.ReadAll(ctx, true)
	if err != nil {
		return 0, err
	}
	return len(ok), nil
}

// cleanOrRaw loads validated clients from the _clean artifact, or tolerantly from the source.
func (r *FileRepository) cleanOrRaw(ctx context.Context) ([]*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := r.backend.ReadArray(r.CleanPath())
	if errors.Is(err, fs.ErrNotExist) {
		ok, _, err := r.ReadAll(ctx, true)
		return ok, err
	}
	if err != nil {
		return nil, err
	}

	clients := make([]*models.Client, 0, len(records))
	for i, item := range records {
		c, err := clientFromRaw(item)
		if err != nil {
			return nil, fmt.Errorf("invalid clean record #%d in %s: %w", i+1, r.CleanPath(), err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// refreshClean regenerates an existing _clean artifact after a mutation.
func (r *FileRepository) refreshClean(ctx context.Context) error {
	if _, err := os.Stat(r.CleanPath()); err != nil {
		return nil
	}
	ok, _, err := r.ReadAll(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to refresh clean records: %w", err)
	}
	if _, err := r.WriteAllOK(ctx, ok); err != nil {
		return fmt.Errorf("failed to refresh clean records: %w", err)
	}
	return nil
}

func (r *FileRepository) readRawOrEmpty() ([]any, error) {
	records, err := r.backend.ReadArray(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []any{}, nil
	}
	return records, err
}

func clientFromRaw(item any) (*models.Client, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: record is not an object (%T)", shared.ErrValidation, item)
	}
	return models.NewClient(models.FromMapping(m))
}

func rawID(item any) any {
	if m, ok := item.(map[string]any); ok {
		return m[models.FieldID]
	}
	return nil
}

// indexesOf returns the positions of raw records whose normalized id equals id.
func indexesOf(records []any, id int64) []int {
	var idxs []int
	for i, item := range records {
		if rid, ok := models.NormalizeID(rawID(item)); ok && rid == id {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// maxRawID ignores ids that do not normalize to positive integers.
func maxRawID(records []any) int64 {
	var max int64
	for _, item := range records {
		if rid, ok := models.NormalizeID(rawID(item)); ok && rid > max {
			max = rid
		}
	}
	return max
}

// duplicatesOf returns ids of clients sharing c's natural key, skipping exclude.
func duplicatesOf(existing []*models.Client, c *models.Client, exclude int64) []int64 {
	var ids []int64
	for _, e := range existing {
		if exclude > 0 && e.ID() == exclude {
			continue
		}
		if models.SameClient(e, c) {
			ids = append(ids, e.ID())
		}
	}
	return ids
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func clientRecords(clients []*models.Client) []any {
	out := make([]any, len(clients))
	for i, c := range clients {
		out[i] = c.Record()
	}
	return out
}
