package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/clientbook/internal/shared"
	"github.com/desertthunder/clientbook/internal/validator"
)

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusDraft  ContractStatus = "Draft"
	StatusActive ContractStatus = "Active"
	StatusClosed ContractStatus = "Closed"
)

// ParseContractStatus matches s case-insensitively against the known statuses.
func ParseContractStatus(s string) (ContractStatus, error) {
	for _, st := range []ContractStatus{StatusDraft, StatusActive, StatusClosed} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", &validator.Error{Field: ContractFieldStatus, Reason: "must be Draft, Active or Closed", Value: s}
}

// Contract field names.
const (
	ContractFieldID        = "id"
	ContractFieldNumber    = "number"
	ContractFieldClientID  = "client_id"
	ContractFieldPrincipal = "principal"
	ContractFieldStatus    = "status"
	ContractFieldStartDate = "start_date"
	ContractFieldEndDate   = "end_date"
)

// ContractFields lists the fields a contract payload must carry. Status defaults to Active.
var ContractFields = []string{
	ContractFieldNumber, ContractFieldClientID, ContractFieldPrincipal,
	ContractFieldStartDate, ContractFieldEndDate,
}

// Contract is a loan agreement owned by one client. Dates are YYYY-MM-DD and the
// principal is held in hundredths.
type Contract struct {
	id         int64
	number     string
	clientID   int64
	principal  int64
	status     ContractStatus
	startDate  string
	endDate    string
	createdAt  time.Time
	clientName string
}

// ContractRecord is the JSON layout of a [Contract].
type ContractRecord struct {
	ID         *int64      `json:"id" yaml:"id"`
	Number     string      `json:"number" yaml:"number"`
	ClientID   int64       `json:"client_id" yaml:"client_id"`
	Principal  json.Number `json:"principal" yaml:"principal"`
	Status     string      `json:"status" yaml:"status"`
	StartDate  string      `json:"start_date" yaml:"start_date"`
	EndDate    string      `json:"end_date" yaml:"end_date"`
	CreatedAt  *time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ClientName string      `json:"client_name,omitempty" yaml:"client_name,omitempty"`
}

// NewContract validates a field mapping. Unknown keys are ignored.
func NewContract(fields map[string]any) (*Contract, error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: empty mapping", shared.ErrValidation)
	}

	var missing []string
	for _, name := range ContractFields {
		if isBlank(fields[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", shared.ErrValidation, strings.Join(missing, ", "))
	}

	c := &Contract{status: StatusActive}

	if raw, ok := fields[ContractFieldID]; ok && raw != nil {
		id, ok := NormalizeID(raw)
		if !ok {
			return nil, &validator.Error{Field: ContractFieldID, Reason: "must be a positive integer", Value: fmt.Sprint(raw)}
		}
		c.id = id
	}

	text := func(name string) (string, error) {
		s, ok := fieldString(fields[name])
		if !ok {
			return "", &validator.Error{Field: name, Reason: fmt.Sprintf("unexpected type %T", fields[name])}
		}
		return s, nil
	}

	number, err := text(ContractFieldNumber)
	if err != nil {
		return nil, err
	}
	if c.number, err = validator.RequireNonEmpty(ContractFieldNumber, number); err != nil {
		return nil, err
	}

	clientID, ok := NormalizeID(fields[ContractFieldClientID])
	if !ok {
		return nil, &validator.Error{Field: ContractFieldClientID, Reason: "must be a positive integer", Value: fmt.Sprint(fields[ContractFieldClientID])}
	}
	c.clientID = clientID

	principal, err := text(ContractFieldPrincipal)
	if err != nil {
		return nil, err
	}
	if c.principal, err = validator.Amount(ContractFieldPrincipal, principal); err != nil {
		return nil, err
	}

	if raw := fields[ContractFieldStatus]; !isBlank(raw) {
		status, err := text(ContractFieldStatus)
		if err != nil {
			return nil, err
		}
		if c.status, err = ParseContractStatus(status); err != nil {
			return nil, err
		}
	}

	var start, end time.Time
	for _, d := range []struct {
		name string
		dst  *string
		t    *time.Time
	}{
		{ContractFieldStartDate, &c.startDate, &start},
		{ContractFieldEndDate, &c.endDate, &end},
	} {
		raw, err := text(d.name)
		if err != nil {
			return nil, err
		}
		if *d.t, err = validator.ISODate(d.name, raw); err != nil {
			return nil, err
		}
		*d.dst = d.t.Format(validator.ISOLayout)
	}
	if end.Before(start) {
		return nil, &validator.Error{Field: ContractFieldEndDate, Reason: "must not be before start_date", Value: c.endDate}
	}

	return c, nil
}

// ContractFromJSON decodes and validates a JSON object.
func ContractFromJSON(text string) (*Contract, error) {
	fields, err := decodeObject(text)
	if err != nil {
		return nil, err
	}
	return NewContract(fields)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (c *Contract) ID() int64                { return c.id }
func (c *Contract) HasID() bool              { return c.id > 0 }
func (c *Contract) SetID(id int64)           { c.id = id }
func (c *Contract) Number() string           { return c.number }
func (c *Contract) ClientID() int64          { return c.clientID }
func (c *Contract) PrincipalCents() int64    { return c.principal }
func (c *Contract) Status() ContractStatus   { return c.status }
func (c *Contract) StartDate() string        { return c.startDate }
func (c *Contract) EndDate() string          { return c.endDate }
func (c *Contract) CreatedAt() time.Time     { return c.createdAt }
func (c *Contract) SetCreatedAt(t time.Time) { c.createdAt = t }
func (c *Contract) ClientName() string       { return c.clientName }
func (c *Contract) SetClientName(n string)   { c.clientName = n }

// Principal renders the amount with two decimals, e.g. "1500.00".
func (c *Contract) Principal() string {
	return fmt.Sprintf("%d.%02d", c.principal/100, c.principal%100)
}

func (c *Contract) Record() ContractRecord {
	rec := ContractRecord{
		Number:     c.number,
		ClientID:   c.clientID,
		Principal:  json.Number(c.Principal()),
		Status:     string(c.status),
		StartDate:  c.startDate,
		EndDate:    c.endDate,
		ClientName: c.clientName,
	}
	if c.HasID() {
		id := c.id
		rec.ID = &id
	}
	if !c.createdAt.IsZero() {
		t := c.createdAt
		rec.CreatedAt = &t
	}
	return rec
}

// String is "No. <number>, client <id> (<name>), <principal>, <status>, <start>..<end>".
func (c *Contract) String() string {
	client := strconv.FormatInt(c.clientID, 10)
	if c.clientName != "" {
		client += " (" + c.clientName + ")"
	}
	return fmt.Sprintf("No. %s, client %s, %s, %s, %s..%s", c.number, client, c.Principal(), c.status, c.startDate, c.endDate)
}
