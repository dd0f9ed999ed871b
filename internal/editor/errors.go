package editor

import (
	"errors"
	"strings"

	"sitecms/api/internal/schema"
)

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrDerivedField    = errors.New("field is derived and cannot be edited")
	ErrNotOptional     = errors.New("field has no enable toggle")
	ErrNotList         = errors.New("field is not a list")
	ErrUnknownSection  = errors.New("unknown section")
	ErrUnknownImage    = errors.New("image is not in the gallery")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrSessionNotFound = errors.New("edit session not found")
)

// MissingFieldsError lists every field that blocked a save. Keys are
// reported in form order.
type MissingFieldsError struct {
	Keys   []string
	Issues []schema.Issue
}

func (e *MissingFieldsError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Keys, ", ")
}

// Focus is the first offending key.
func (e *MissingFieldsError) Focus() string {
	if len(e.Keys) == 0 {
		return ""
	}
	return e.Keys[0]
}

// InvalidSectionError lists every section whose text does not parse, or whose
// content failed validation.
type InvalidSectionError struct {
	Keys   []string
	Issues []schema.Issue
}

func (e *InvalidSectionError) Error() string {
	return "invalid sections: " + strings.Join(e.Keys, ", ")
}

func (e *InvalidSectionError) Focus() string {
	if len(e.Keys) == 0 {
		return ""
	}
	return e.Keys[0]
}

// PersistFailedError is a failure after validation passed. Message is safe
// to show; Err carries the cause.
type PersistFailedError struct {
	Message string
	Err     error
}

func (e *PersistFailedError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PersistFailedError) Unwrap() error {
	return e.Err
}
