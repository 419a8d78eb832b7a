package models

import "fmt"

// ClientShort is the compressed projection: combined passport, one contact and initials.
type ClientShort struct {
	id          int64
	lastName    string
	firstName   string
	middleName  string
	birthDate   string
	passport    string
	contact     string
	contactType ContactType
}

// ShortRecord is the serializable form of a [ClientShort].
type ShortRecord struct {
	ID          *int64      `json:"id" yaml:"id"`
	LastName    string      `json:"last_name" yaml:"last_name"`
	Initials    string      `json:"initials" yaml:"initials"`
	BirthDate   string      `json:"birth_date" yaml:"birth_date"`
	Passport    string      `json:"passport" yaml:"passport"`
	Contact     string      `json:"contact" yaml:"contact"`
	ContactType ContactType `json:"contact_type" yaml:"contact_type"`
}

type shortOptions struct {
	prefer ContactType
}

// ShortOption configures [NewClientShort].
type ShortOption func(*shortOptions)

// WithPreferContact selects the contact kept by the short view. Phone is the default.
func WithPreferContact(ct ContactType) ShortOption {
	return func(o *shortOptions) { o.prefer = ct }
}

// shortRequired are the fields a short view needs; the address is not one of them.
var shortRequired = []string{
	FieldLastName, FieldFirstName, FieldMiddleName,
	FieldPassportSeries, FieldPassportNumber, FieldBirthDate,
	FieldPhone, FieldEmail,
}

// NewClientShort validates src into a short client. A short source is copied as is.
func NewClientShort(src Source, opts ...ShortOption) (*ClientShort, error) {
	o := shortOptions{prefer: ContactPhone}
	for _, opt := range opts {
		opt(&o)
	}

	if src.kind == sourceShort && src.short != nil && len(src.extras) == 0 {
		s := *src.short
		return &s, nil
	}

	fields, err := src.resolve()
	if err != nil {
		return nil, err
	}

	v, err := validate(fields, shortRequired)
	if err != nil {
		return nil, err
	}

	s := &ClientShort{
		id:          v.id,
		lastName:    v.lastName,
		firstName:   v.firstName,
		middleName:  v.middleName,
		birthDate:   v.birthDate,
		passport:    v.passportSeries + " " + v.passportNumber,
		contact:     v.phone,
		contactType: ContactPhone,
	}
	if o.prefer == ContactEmail {
		s.contact = v.email
		s.contactType = ContactEmail
	}
	return s, nil
}

// ShortOf projects an already valid client without re-running validation.
func ShortOf(c *Client, prefer ContactType) *ClientShort {
	s := &ClientShort{
		id:          c.id,
		lastName:    c.lastName,
		firstName:   c.firstName,
		middleName:  c.middleName,
		birthDate:   c.birthDate,
		passport:    c.Passport(),
		contact:     c.phone,
		contactType: ContactPhone,
	}
	if prefer == ContactEmail {
		s.contact = c.email
		s.contactType = ContactEmail
	}
	return s
}

func (s *ClientShort) ID() int64                { return s.id }
func (s *ClientShort) HasID() bool              { return s.id > 0 }
func (s *ClientShort) SetID(id int64)           { s.id = id }
func (s *ClientShort) LastName() string         { return s.lastName }
func (s *ClientShort) FirstName() string        { return s.firstName }
func (s *ClientShort) MiddleName() string       { return s.middleName }
func (s *ClientShort) BirthDate() string        { return s.birthDate }
func (s *ClientShort) Passport() string         { return s.passport }
func (s *ClientShort) Contact() string          { return s.contact }
func (s *ClientShort) ContactType() ContactType { return s.contactType }

// Initials returns "F.M.".
func (s *ClientShort) Initials() string { return initials(s.firstName, s.middleName) }

// Record returns the serializable form.
func (s *ClientShort) Record() ShortRecord {
	rec := ShortRecord{
		LastName:    s.lastName,
		Initials:    s.Initials(),
		BirthDate:   s.birthDate,
		Passport:    s.passport,
		Contact:     s.contact,
		ContactType: s.contactType,
	}
	if s.HasID() {
		id := s.id
		rec.ID = &id
	}
	return rec
}

// String is "Last F.M., contact; passport SSSS NNNNNN; DD-MM-YYYY".
func (s *ClientShort) String() string {
	return fmt.Sprintf("%s %s, %s; passport %s; %s", s.lastName, s.Initials(), s.contact, s.passport, s.birthDate)
}
