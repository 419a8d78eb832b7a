package repositories

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/clientbook/internal/shared"
)

// Backend reads and writes one physical medium. It owns encoding only; no business rules.
type Backend interface {
	// Name identifies the format ("json", "yaml").
	Name() string
	// DerivePath builds a companion path such as clients_clean.json, keeping the native extension.
	DerivePath(base, suffix string) string
	// ReadArray loads the raw collection. An absent source matches [shared.ErrNotFound] and
	// [fs.ErrNotExist]; anything but an array matches [shared.ErrFormat].
	ReadArray(path string) ([]any, error)
	// WriteArray replaces the file at path with records without exposing a partial write.
	WriteArray(path string, records []any, pretty bool) error
	// WriteDocument writes any document (used for the _errors artifact).
	WriteDocument(path string, doc any, pretty bool) error
}

// JSONBackend stores records as a JSON array.
type JSONBackend struct{}

// NewJSONBackend creates a [JSONBackend].
func NewJSONBackend() *JSONBackend { return &JSONBackend{} }

func (b *JSONBackend) Name() string { return shared.BackendJSON }

func (b *JSONBackend) DerivePath(base, suffix string) string {
	return derivePath(base, suffix, ".json", ".json")
}

func (b *JSONBackend) ReadArray(path string) ([]any, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrFormat, path, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: %s: trailing data after JSON document", shared.ErrFormat, path)
	}

	return asArray(path, doc)
}

func (b *JSONBackend) WriteArray(path string, records []any, pretty bool) error {
	if records == nil {
		records = []any{}
	}
	return b.WriteDocument(path, records, pretty)
}

func (b *JSONBackend) WriteDocument(path string, doc any, pretty bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// YAMLBackend stores records as a YAML sequence.
type YAMLBackend struct{}

// NewYAMLBackend creates a [YAMLBackend].
func NewYAMLBackend() *YAMLBackend { return &YAMLBackend{} }

func (b *YAMLBackend) Name() string { return shared.BackendYAML }

func (b *YAMLBackend) DerivePath(base, suffix string) string {
	return derivePath(base, suffix, ".yaml", ".yaml", ".yml")
}

func (b *YAMLBackend) ReadArray(path string) ([]any, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrFormat, path, err)
	}
	if doc == nil {
		return []any{}, nil
	}

	items, err := asArray(path, doc)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		items[i] = stringKeys(item)
	}
	return items, nil
}

func (b *YAMLBackend) WriteArray(path string, records []any, pretty bool) error {
	if records == nil {
		records = []any{}
	}
	return b.WriteDocument(path, records, pretty)
}

func (b *YAMLBackend) WriteDocument(path string, doc any, pretty bool) error {
	var node yaml.Node
	if err := node.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if !pretty {
		node.Style = yaml.FlowStyle
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush YAML: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

// derivePath inserts suffix before a native extension, or appends suffix+ext otherwise:
// clients.json -> clients_clean.json, data.txt -> data.txt_clean.json.
func derivePath(base, suffix, ext string, native ...string) string {
	cur := filepath.Ext(base)
	for _, n := range native {
		if strings.EqualFold(cur, n) {
			return strings.TrimSuffix(base, cur) + suffix + cur
		}
	}
	return base + suffix + ext
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: source %s: %w", shared.ErrNotFound, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func asArray(path string, doc any) ([]any, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: top level must be an array of objects, got %T", shared.ErrFormat, path, doc)
	}
	return items, nil
}

// stringKeys converts YAML mappings decoded with non-string keys into map[string]any.
func stringKeys(v any) any {
	m, ok := v.(map[any]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[fmt.Sprint(k)] = val
	}
	return out
}

// writeAtomic writes data to a temp file next to path, syncs it and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+shared.GenerateID()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
