// Package validator normalizes and checks individual client fields.
//
// Every function is pure: it takes the raw value and returns either the normalized value or
// an [*Error] describing why the value was rejected. Entity constructors in models share these
// rules, so a full and a short client always agree on what a valid field is.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/desertthunder/clientbook/internal/shared"
)

// DateLayout is the canonical DD-MM-YYYY birth date layout.
const DateLayout = "02-01-2006"

// ISOLayout is the YYYY-MM-DD layout of contract dates.
const ISOLayout = "2006-01-02"

var (
	seriesPattern = regexp.MustCompile(`^[0-9]{4}$`)
	numberPattern = regexp.MustCompile(`^[0-9]{6}$`)
	datePattern   = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
	isoPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	amountPattern = regexp.MustCompile(`^(\d{1,12})(?:\.(\d{1,2}))?$`)
	phonePlus7    = regexp.MustCompile(`^\+7\d{10}$`)
	phoneEight    = regexp.MustCompile(`^89\d{9}$`)
	phoneStrip    = regexp.MustCompile(`[()\s\-]`)
	emailLocal    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+$`)
	emailLabel    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?$`)
	emailTLD      = regexp.MustCompile(`^[A-Za-z]{2,}$`)
)

var (
	clockMu sync.RWMutex
	clock   = time.Now
)

// Error is a single rejected field.
type Error struct {
	Field  string
	Reason string
	Value  string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Reason, e.Value)
}

// Unwrap lets callers match any field failure with errors.Is(err, shared.ErrValidation).
func (e *Error) Unwrap() error { return shared.ErrValidation }

func reject(field, value, reason string) error {
	return &Error{Field: field, Reason: reason, Value: value}
}

// SetClock replaces the source of "today" used by [BirthDate] and returns a func restoring the previous one.
func SetClock(now func() time.Time) (restore func()) {
	clockMu.Lock()
	prev := clock
	clock = now
	clockMu.Unlock()
	return func() {
		clockMu.Lock()
		clock = prev
		clockMu.Unlock()
	}
}

func today() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	y, m, d := clock().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RequireNonEmpty trims value and rejects an empty result.
func RequireNonEmpty(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", reject(field, "", "must not be empty")
	}
	return v, nil
}

// LettersOnly accepts a non-empty value made only of letters (any script).
func LettersOnly(field, value string) (string, error) {
	v, err := RequireNonEmpty(field, value)
	if err != nil {
		return "", err
	}
	for _, r := range v {
		if !unicode.IsLetter(r) {
			return "", reject(field, v, "must contain letters only")
		}
	}
	return v, nil
}

// PassportSeries strips spaces and requires exactly 4 digits.
func PassportSeries(value string) (string, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if !seriesPattern.MatchString(v) {
		return "", reject("passport_series", value, "must be exactly 4 digits")
	}
	return v, nil
}

// PassportNumber strips spaces and requires exactly 6 digits.
func PassportNumber(value string) (string, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if !numberPattern.MatchString(v) {
		return "", reject("passport_number", value, "must be exactly 6 digits")
	}
	return v, nil
}

// ParseDate parses a DD-MM-YYYY value into a UTC date without the "not in the future" rule.
func ParseDate(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	m := datePattern.FindStringSubmatch(v)
	if m == nil {
		return time.Time{}, reject(field, value, "must match DD-MM-YYYY")
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day || year < 1 {
		return time.Time{}, reject(field, value, "non-existent date")
	}
	return d, nil
}

// BirthDate validates a DD-MM-YYYY date that exists and is not after today.
// The result is re-rendered in [DateLayout].
func BirthDate(value string) (string, error) {
	d, err := ParseDate("birth_date", value)
	if err != nil {
		return "", err
	}
	if d.After(today()) {
		return "", reject("birth_date", value, "date is in the future")
	}
	return d.Format(DateLayout), nil
}

// ISODate parses a real YYYY-MM-DD calendar date.
func ISODate(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if !isoPattern.MatchString(v) {
		return time.Time{}, reject(field, value, "must match YYYY-MM-DD")
	}
	d, err := time.Parse(ISOLayout, v)
	if err != nil {
		return time.Time{}, reject(field, value, "non-existent date")
	}
	return d, nil
}

// Amount parses a non-negative decimal with at most two fractional digits and
// returns it in hundredths. Up to twelve integer digits are accepted.
func Amount(field, value string) (int64, error) {
	v := strings.TrimSpace(value)
	m := amountPattern.FindStringSubmatch(v)
	if m == nil {
		return 0, reject(field, value, "must be a non-negative amount with at most 2 decimals")
	}
	whole, _ := strconv.ParseInt(m[1], 10, 64)
	frac := m[2]
	for len(frac) < 2 {
		frac += "0"
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	return whole*100 + cents, nil
}

// Phone accepts +7XXXXXXXXXX or 89XXXXXXXXX after removing spaces, parentheses and dashes.
func Phone(value string) (string, error) {
	v := phoneStrip.ReplaceAllString(strings.TrimSpace(value), "")
	if v == "" {
		return "", reject("phone", "", "must not be empty")
	}
	if strings.Count(v, "+") > 1 || (strings.Contains(v, "+") && !strings.HasPrefix(v, "+")) {
		return "", reject("phone", value, "'+' is only allowed once, at the start")
	}
	if phonePlus7.MatchString(v) || phoneEight.MatchString(v) {
		return v, nil
	}
	return "", reject("phone", value, "expected +7XXXXXXXXXX or 89XXXXXXXXX")
}

// Email applies a strict address check: one '@', ASCII local part, at least two domain labels
// and an alphabetic TLD of two or more characters.
func Email(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", reject("email", "", "must not be empty")
	}
	if strings.Count(v, "@") != 1 {
		return "", reject("email", v, "must contain exactly one '@'")
	}

	local, domain, _ := strings.Cut(v, "@")
	if err := dotRules("email", v, local, "local part"); err != nil {
		return "", err
	}
	if !emailLocal.MatchString(local) {
		return "", reject("email", v, "local part contains forbidden characters")
	}
	if err := dotRules("email", v, domain, "domain"); err != nil {
		return "", err
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "", reject("email", v, "domain must have at least two labels")
	}
	for _, label := range labels {
		if !emailLabel.MatchString(label) {
			return "", reject("email", v, fmt.Sprintf("invalid domain label %q", label))
		}
	}
	if !emailTLD.MatchString(labels[len(labels)-1]) {
		return "", reject("email", v, "top-level domain must be at least two letters")
	}
	return v, nil
}

func dotRules(field, value, part, name string) error {
	switch {
	case part == "":
		return reject(field, value, name+" must not be empty")
	case strings.HasPrefix(part, ".") || strings.HasSuffix(part, "."):
		return reject(field, value, name+" must not start or end with '.'")
	case strings.Contains(part, ".."):
		return reject(field, value, name+" must not contain '..'")
	}
	return nil
}

// Address only requires a non-empty value.
func Address(value string) (string, error) {
	return RequireNonEmpty("address", value)
}
