package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Record errors
	ErrValidation        = fmt.Errorf("validation failed")
	ErrNotFound          = fmt.Errorf("not found")
	ErrDuplicateID       = fmt.Errorf("duplicate id")
	ErrDuplicateClient   = fmt.Errorf("duplicate client")
	ErrDuplicateContract = fmt.Errorf("duplicate contract")
	ErrMismatchedID      = fmt.Errorf("mismatched id")
	ErrFormat            = fmt.Errorf("invalid source format")
)

// Error kinds reported in structured record errors and notes.
const (
	KindArgument          = "ArgumentError"
	KindValidation        = "ValidationError"
	KindNotFound          = "NotFound"
	KindDuplicateID       = "DuplicateId"
	KindDuplicateClient   = "DuplicateClient"
	KindDuplicateContract = "DuplicateContract"
	KindMismatchedID      = "MismatchedId"
	KindFormat            = "FormatError"
	KindConfig            = "ConfigError"
	KindUnknown           = "Error"
)

// ErrorKind maps err onto the stable error_type vocabulary shared by every backend.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDuplicateClient):
		return KindDuplicateClient
	case errors.Is(err, ErrDuplicateContract):
		return KindDuplicateContract
	case errors.Is(err, ErrDuplicateID):
		return KindDuplicateID
	case errors.Is(err, ErrMismatchedID):
		return KindMismatchedID
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidFlag):
		return KindArgument
	case errors.Is(err, ErrMissingConfig), errors.Is(err, ErrInvalidConfig):
		return KindConfig
	default:
		return KindUnknown
	}
}
