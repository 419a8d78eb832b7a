// package models defines the client entities and the structured error records shared by every backend
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Persisted field names in canonical order.
const (
	FieldID             = "id"
	FieldLastName       = "last_name"
	FieldFirstName      = "first_name"
	FieldMiddleName     = "middle_name"
	FieldPassportSeries = "passport_series"
	FieldPassportNumber = "passport_number"
	FieldBirthDate      = "birth_date"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldAddress        = "address"
)

// Fields lists the persisted client fields without id, in delimited-string order.
var Fields = []string{
	FieldLastName, FieldFirstName, FieldMiddleName,
	FieldPassportSeries, FieldPassportNumber, FieldBirthDate,
	FieldPhone, FieldEmail, FieldAddress,
}

// ContactType tags which contact a [ClientShort] carries.
type ContactType string

const (
	ContactPhone ContactType = "phone"
	ContactEmail ContactType = "email"
)

// ParseContactType maps "email" to [ContactEmail] and everything else to [ContactPhone].
func ParseContactType(s string) ContactType {
	if strings.EqualFold(strings.TrimSpace(s), string(ContactEmail)) {
		return ContactEmail
	}
	return ContactPhone
}

// RecordError describes one raw record that failed validation during a tolerant read.
type RecordError struct {
	Index        int    `json:"index" yaml:"index"`
	DisplayIndex int    `json:"display_index" yaml:"display_index"`
	ID           any    `json:"id" yaml:"id"`
	ErrorType    string `json:"error_type" yaml:"error_type"`
	Message      string `json:"message" yaml:"message"`
}

// Hint is "id=X" when the record carried an id and "index=N" (1-based) otherwise.
func (e RecordError) Hint() string {
	if e.ID != nil {
		return fmt.Sprintf("id=%v", e.ID)
	}
	return fmt.Sprintf("index=%d", e.DisplayIndex)
}

// Note is a non-fatal finding attached to a lookup or delete, such as NotFound or DuplicateId.
type Note struct {
	ID        int64  `json:"id" yaml:"id"`
	ErrorType string `json:"error_type" yaml:"error_type"`
	Message   string `json:"message" yaml:"message"`
}

// Notes is the list of findings returned next to a result.
type Notes []Note

// Has reports whether any note has the given error type.
func (n Notes) Has(kind string) bool {
	for _, note := range n {
		if note.ErrorType == kind {
			return true
		}
	}
	return false
}

// NormalizeID converts a raw id value into a positive integer.
//
// Accepted: Go integers, integral floats, [json.Number] and digit strings (surrounding spaces allowed).
func NormalizeID(v any) (int64, bool) {
	var id int64
	switch t := v.(type) {
	case int:
		id = int64(t)
	case int32:
		id = int64(t)
	case int64:
		id = t
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		id = int64(t)
	case float64:
		n, ok := integralFloat(t)
		if !ok {
			return 0, false
		}
		id = n
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return 0, false
			}
			var ok bool
			if n, ok = integralFloat(f); !ok {
				return 0, false
			}
		}
		id = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.Trim(s, "0123456789") != "" {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	return id, id > 0
}

// integralFloat accepts floats with no fractional part that fit in an int64, such as 1.0 or 1e3.
func integralFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
