package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/desertthunder/clientbook/internal/shared"
)

// DefaultSeparator splits delimited client strings.
const DefaultSeparator = ";"

type sourceKind int

const (
	sourceMapping sourceKind = iota
	sourceJSON
	sourceDelimited
	sourceText
	sourceClient
	sourceShort
)

// Source is one input a client can be built from. Build it with one of the From* functions.
type Source struct {
	kind    sourceKind
	mapping map[string]any
	text    string
	sep     string
	client  *Client
	short   *ClientShort
	extras  map[string]any
}

// FromMapping uses an already decoded key/value record.
func FromMapping(m map[string]any) Source {
	return Source{kind: sourceMapping, mapping: m}
}

// FromJSON decodes a JSON object.
func FromJSON(text string) Source {
	return Source{kind: sourceJSON, text: text}
}

// FromDelimited splits text on sep (";" when empty): 9 fields without id or 10 with a leading id.
func FromDelimited(text, sep string) Source {
	if sep == "" {
		sep = DefaultSeparator
	}
	return Source{kind: sourceDelimited, text: text, sep: sep}
}

// FromText tries text as a JSON object first and as a ";"-delimited string otherwise.
func FromText(text string) Source {
	return Source{kind: sourceText, text: text, sep: DefaultSeparator}
}

// FromClient copies or narrows an existing full client.
func FromClient(c *Client) Source {
	return Source{kind: sourceClient, client: c}
}

// FromShort widens a short client. A [ClientShort] keeps neither passport parts, both contacts
// nor the address, so extras must supply passport_series, passport_number, phone, email and address.
func FromShort(s *ClientShort, extras map[string]any) Source {
	return Source{kind: sourceShort, short: s, extras: extras}
}

// resolve turns any source into the canonical field mapping fed to validation.
func (s Source) resolve() (map[string]any, error) {
	switch s.kind {
	case sourceMapping:
		if s.mapping == nil {
			return nil, fmt.Errorf("%w: empty mapping", shared.ErrValidation)
		}
		return maps.Clone(s.mapping), nil
	case sourceJSON:
		return decodeObject(s.text)
	case sourceDelimited:
		return splitDelimited(s.text, s.sep)
	case sourceText:
		if m, err := decodeObject(s.text); err == nil {
			return m, nil
		}
		return splitDelimited(s.text, s.sep)
	case sourceClient:
		if s.client == nil {
			return nil, fmt.Errorf("%w: nil client", shared.ErrInvalidArgument)
		}
		return s.client.Mapping(), nil
	case sourceShort:
		if s.short == nil {
			return nil, fmt.Errorf("%w: nil short client", shared.ErrInvalidArgument)
		}
		m := map[string]any{
			FieldLastName:   s.short.lastName,
			FieldFirstName:  s.short.firstName,
			FieldMiddleName: s.short.middleName,
			FieldBirthDate:  s.short.birthDate,
		}
		if s.short.id > 0 {
			m[FieldID] = s.short.id
		}
		maps.Copy(m, s.extras)
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown source", shared.ErrInvalidArgument)
	}
}

func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON object: %v", shared.ErrValidation, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: JSON value is not an object", shared.ErrValidation)
	}
	return m, nil
}

func splitDelimited(text, sep string) (map[string]any, error) {
	parts := strings.Split(text, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	m := make(map[string]any, len(Fields)+1)
	switch len(parts) {
	case len(Fields):
	case len(Fields) + 1:
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || id <= 0 || strings.Trim(parts[0], "0123456789") != "" {
			return nil, fmt.Errorf("%w: id field %q must be a positive integer", shared.ErrValidation, parts[0])
		}
		m[FieldID] = id
		parts = parts[1:]
	default:
		return nil, fmt.Errorf("%w: expected %d fields (no id) or %d (with id) separated by %q, got %d",
			shared.ErrValidation, len(Fields), len(Fields)+1, sep, len(parts))
	}

	for i, name := range Fields {
		m[name] = parts[i]
	}
	return m, nil
}

// fieldString renders a scalar raw value as text. Integers are accepted because YAML and
// JSON readers may type digit-only fields as numbers.
func fieldString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// expandPassport fills passport_series/passport_number from a combined "SSSS NNNNNN" passport value.
func expandPassport(m map[string]any) {
	if _, ok := m[FieldPassportSeries]; ok {
		return
	}
	raw, ok := m["passport"].(string)
	if !ok {
		return
	}
	parts := strings.Fields(raw)
	if len(parts) == 2 {
		m[FieldPassportSeries] = parts[0]
		if _, ok := m[FieldPassportNumber]; !ok {
			m[FieldPassportNumber] = parts[1]
		}
	}
}
