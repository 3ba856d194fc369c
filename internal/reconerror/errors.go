// Package reconerror defines the typed errors surfaced at the engine
// boundary. Inside the engine, malformed fields resolve to defaults and
// are logged; only boundary failures (undecodable payloads, unreadable
// inputs) become errors.
package reconerror

import "fmt"

// PayloadError means the primary extraction JSON could not be decoded at
// all. Field-level problems never produce this; they fall back.
type PayloadError struct {
	Stage string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: cannot decode extraction payload: %v", e.Stage, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// FieldError reports a single field that could not be parsed and the
// value it resolved to instead. Used for warn-level logging, not for
// propagation.
type FieldError struct {
	Field    string
	Value    string
	Fallback string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("failed to parse %s='%s', using %s", e.Field, e.Value, e.Fallback)
}

// StoreError wraps persistence failures with the operation that caused
// them.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UploadError wraps document-management upload failures.
type UploadError struct {
	Document string
	Status   int
	Err      error
}

func (e *UploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upload %s: unexpected status %d", e.Document, e.Status)
	}
	return fmt.Sprintf("upload %s: %v", e.Document, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
