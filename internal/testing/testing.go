// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"maps"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Today is the reference date the fixtures are valid against.
var Today = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// SampleRecords returns raw client records, all valid, with ids 1..n.
//
// Last names mix scripts and letter case so ordering and case-folded filtering have something to chew on.
func SampleRecords() []map[string]any {
	return []map[string]any{
		{
			"id": 1, "last_name": "Иванов", "first_name": "Иван", "middle_name": "Иванович",
			"passport_series": "4510", "passport_number": "123456", "birth_date": "01-02-1990",
			"phone": "+79991234567", "email": "ivanov@example.com", "address": "Москва, Тверская 1",
		},
		{
			"id": 2, "last_name": "Petrov", "first_name": "Petr", "middle_name": "Petrovich",
			"passport_series": "4511", "passport_number": "654321", "birth_date": "15-07-1985",
			"phone": "89161234567", "email": "petrov@mail.ru", "address": "Kazan, Baumana 5",
		},
		{
			"id": 3, "last_name": "сидорова", "first_name": "Анна", "middle_name": "Сергеевна",
			"passport_series": "4512", "passport_number": "111222", "birth_date": "30-12-2000",
			"phone": "+79031112233", "email": "anna.sidorova@yandex.ru", "address": "Тула, Ленина 10",
		},
		{
			"id": 4, "last_name": "Abramov", "first_name": "Oleg", "middle_name": "Igorevich",
			"passport_series": "4510", "passport_number": "999888", "birth_date": "15-07-1985",
			"phone": "+79995554433", "email": "oleg@abramov.org", "address": "Omsk, Mira 3",
		},
		{
			"id": 5, "last_name": "petrova", "first_name": "Olga", "middle_name": "Ivanovna",
			"passport_series": "4513", "passport_number": "222333", "birth_date": "05-05-1979",
			"phone": "89267778899", "email": "olga.petrova@example.com", "address": "Perm, Lenina 7",
		},
	}
}

// NewRecord returns a valid record without id whose passport and contacts derive from n.
func NewRecord(last string, n int) map[string]any {
	digit := byte('0' + n%10)
	return map[string]any{
		"last_name":       last,
		"first_name":      "Test",
		"middle_name":     "Testovich",
		"passport_series": "70" + string([]byte{digit, digit}),
		"passport_number": "10000" + string(digit),
		"birth_date":      "10-10-1990",
		"phone":           "+7900000000" + string(digit),
		"email":           "user" + string(digit) + "@example.com",
		"address":         "Somewhere " + string(digit),
	}
}

// WithFields returns a copy of rec with overrides applied.
func WithFields(rec map[string]any, kv map[string]any) map[string]any {
	out := maps.Clone(rec)
	maps.Copy(out, kv)
	return out
}

// Records converts fixture records into the []any shape backends exchange.
func Records(recs ...map[string]any) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
