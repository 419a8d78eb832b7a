package models

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/clientbook/internal/shared"
	"github.com/desertthunder/clientbook/internal/validator"
)

// Client is the full projection of a person record. Fields are immutable after construction except the id.
type Client struct {
	id             int64
	lastName       string
	firstName      string
	middleName     string
	passportSeries string
	passportNumber string
	birthDate      string
	phone          string
	email          string
	address        string
}

// ClientRecord is the persisted layout of a [Client], keys in canonical order.
type ClientRecord struct {
	ID             *int64 `json:"id" yaml:"id"`
	LastName       string `json:"last_name" yaml:"last_name"`
	FirstName      string `json:"first_name" yaml:"first_name"`
	MiddleName     string `json:"middle_name" yaml:"middle_name"`
	PassportSeries string `json:"passport_series" yaml:"passport_series"`
	PassportNumber string `json:"passport_number" yaml:"passport_number"`
	BirthDate      string `json:"birth_date" yaml:"birth_date"`
	Phone          string `json:"phone" yaml:"phone"`
	Email          string `json:"email" yaml:"email"`
	Address        string `json:"address" yaml:"address"`
}

// validated holds the normalized values shared by both entity views.
type validated struct {
	id             int64
	lastName       string
	firstName      string
	middleName     string
	passportSeries string
	passportNumber string
	birthDate      string
	phone          string
	email          string
	address        string
}

// NewClient validates src into a full client.
func NewClient(src Source) (*Client, error) {
	if src.kind == sourceClient && src.client != nil {
		c := *src.client
		return &c, nil
	}

	fields, err := src.resolve()
	if err != nil {
		return nil, err
	}

	v, err := validate(fields, Fields)
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:             v.id,
		lastName:       v.lastName,
		firstName:      v.firstName,
		middleName:     v.middleName,
		passportSeries: v.passportSeries,
		passportNumber: v.passportNumber,
		birthDate:      v.birthDate,
		phone:          v.phone,
		email:          v.email,
		address:        v.address,
	}
	if src.kind == sourceShort && !MatchesShort(c, src.short) {
		return nil, fmt.Errorf("%w: extras conflict with short client %q", shared.ErrValidation, src.short.String())
	}
	return c, nil
}

// validate checks presence of the required fields and runs each field validator in canonical order.
func validate(fields map[string]any, required []string) (validated, error) {
	var out validated

	expandPassport(fields)

	var missing []string
	for _, name := range required {
		if fields[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("%w: missing required fields: %s", shared.ErrValidation, strings.Join(missing, ", "))
	}

	if raw, ok := fields[FieldID]; ok && raw != nil {
		id, ok := NormalizeID(raw)
		if !ok {
			return out, &validator.Error{Field: FieldID, Reason: "must be a positive integer", Value: fmt.Sprint(raw)}
		}
		out.id = id
	}

	get := func(name string) (string, error) {
		raw, present := fields[name]
		if !present || raw == nil {
			return "", nil
		}
		s, ok := fieldString(raw)
		if !ok {
			return "", &validator.Error{Field: name, Reason: "must be a string", Value: fmt.Sprint(raw)}
		}
		return s, nil
	}

	steps := []struct {
		name  string
		dst   *string
		check func(string) (string, error)
	}{
		{FieldLastName, &out.lastName, func(s string) (string, error) { return validator.LettersOnly(FieldLastName, s) }},
		{FieldFirstName, &out.firstName, func(s string) (string, error) { return validator.LettersOnly(FieldFirstName, s) }},
		{FieldMiddleName, &out.middleName, func(s string) (string, error) { return validator.LettersOnly(FieldMiddleName, s) }},
		{FieldPassportSeries, &out.passportSeries, validator.PassportSeries},
		{FieldPassportNumber, &out.passportNumber, validator.PassportNumber},
		{FieldBirthDate, &out.birthDate, validator.BirthDate},
		{FieldPhone, &out.phone, validator.Phone},
		{FieldEmail, &out.email, validator.Email},
		{FieldAddress, &out.address, validator.Address},
	}

	for _, step := range steps {
		if !contains(required, step.name) {
			if _, present := fields[step.name]; !present || fields[step.name] == nil {
				continue
			}
		}
		raw, err := get(step.name)
		if err != nil {
			return out, err
		}
		val, err := step.check(raw)
		if err != nil {
			return out, err
		}
		*step.dst = val
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Client) ID() int64              { return c.id }
func (c *Client) HasID() bool            { return c.id > 0 }
func (c *Client) SetID(id int64)         { c.id = id }
func (c *Client) LastName() string       { return c.lastName }
func (c *Client) FirstName() string      { return c.firstName }
func (c *Client) MiddleName() string     { return c.middleName }
func (c *Client) PassportSeries() string { return c.passportSeries }
func (c *Client) PassportNumber() string { return c.passportNumber }
func (c *Client) BirthDate() string      { return c.birthDate }
func (c *Client) Phone() string          { return c.phone }
func (c *Client) Email() string          { return c.email }
func (c *Client) Address() string        { return c.address }

// Passport is the combined "SSSS NNNNNN" form.
func (c *Client) Passport() string { return c.passportSeries + " " + c.passportNumber }

// Initials returns "F.M." built from the first letters of the first and middle names.
func (c *Client) Initials() string { return initials(c.firstName, c.middleName) }

// Record returns the persisted layout.
func (c *Client) Record() ClientRecord {
	rec := ClientRecord{
		LastName:       c.lastName,
		FirstName:      c.firstName,
		MiddleName:     c.middleName,
		PassportSeries: c.passportSeries,
		PassportNumber: c.passportNumber,
		BirthDate:      c.birthDate,
		Phone:          c.phone,
		Email:          c.email,
		Address:        c.address,
	}
	if c.HasID() {
		id := c.id
		rec.ID = &id
	}
	return rec
}

// Mapping returns the record as a field mapping; id is omitted when unassigned.
func (c *Client) Mapping() map[string]any {
	m := map[string]any{
		FieldLastName:       c.lastName,
		FieldFirstName:      c.firstName,
		FieldMiddleName:     c.middleName,
		FieldPassportSeries: c.passportSeries,
		FieldPassportNumber: c.passportNumber,
		FieldBirthDate:      c.birthDate,
		FieldPhone:          c.phone,
		FieldEmail:          c.email,
		FieldAddress:        c.address,
	}
	if c.HasID() {
		m[FieldID] = c.id
	}
	return m
}

// Delimited renders the client in the 9 field (no id) or 10 field (with id) format.
func (c *Client) Delimited(sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	parts := []string{
		c.lastName, c.firstName, c.middleName,
		c.passportSeries, c.passportNumber, c.birthDate,
		c.phone, c.email, c.address,
	}
	if c.HasID() {
		parts = append([]string{strconv.FormatInt(c.id, 10)}, parts...)
	}
	return strings.Join(parts, sep)
}

// FullString renders one labelled line per field.
func (c *Client) FullString() string {
	id := "-"
	if c.HasID() {
		id = strconv.FormatInt(c.id, 10)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "id:               %s\n", id)
	fmt.Fprintf(&b, "Last name:        %s\n", c.lastName)
	fmt.Fprintf(&b, "First name:       %s\n", c.firstName)
	fmt.Fprintf(&b, "Middle name:      %s\n", c.middleName)
	fmt.Fprintf(&b, "Passport series:  %s\n", c.passportSeries)
	fmt.Fprintf(&b, "Passport number:  %s\n", c.passportNumber)
	fmt.Fprintf(&b, "Birth date:       %s\n", c.birthDate)
	fmt.Fprintf(&b, "Phone:            %s\n", c.phone)
	fmt.Fprintf(&b, "Email:            %s\n", c.email)
	fmt.Fprintf(&b, "Address:          %s", c.address)
	return b.String()
}

// ShortString is "Last First Middle (DD-MM-YYYY), passport SSSS NNNNNN".
func (c *Client) ShortString() string {
	return fmt.Sprintf("%s %s %s (%s), passport %s", c.lastName, c.firstName, c.middleName, c.birthDate, c.Passport())
}

func (c *Client) String() string { return c.ShortString() }

// SameClient compares the natural key: names, birth date, passport parts, phone and email.
// id and address are ignored.
func SameClient(a, b *Client) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.lastName == b.lastName &&
		a.firstName == b.firstName &&
		a.middleName == b.middleName &&
		a.birthDate == b.birthDate &&
		a.passportSeries == b.passportSeries &&
		a.passportNumber == b.passportNumber &&
		a.phone == b.phone &&
		a.email == b.email
}

// MatchesShort reports whether s is a projection of c: same names, birth date and passport.
func MatchesShort(c *Client, s *ClientShort) bool {
	if c == nil || s == nil {
		return false
	}
	return c.lastName == s.lastName &&
		c.firstName == s.firstName &&
		c.middleName == s.middleName &&
		c.birthDate == s.birthDate &&
		c.Passport() == s.passport
}

func initials(first, middle string) string {
	var b strings.Builder
	if r, _ := utf8.DecodeRuneInString(first); r != utf8.RuneError {
		b.WriteRune(r)
		b.WriteByte('.')
	}
	if r, _ := utf8.DecodeRuneInString(middle); r != utf8.RuneError {
		b.WriteRune(r)
		b.WriteByte('.')
	}
	return b.String()
}
