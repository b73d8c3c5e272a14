package datastore

import (
	"errors"
	"fmt"
)

// Codes shared by all backends. PostgREST codes pass through unchanged;
// SQL backends translate driver errors into these.
const (
	CodeNoRows          = "PGRST116"
	CodeMultipleRows    = "PGRST116M"
	CodeJWTExpired      = "PGRST301"
	CodeUniqueViolation = "23505"
	CodeForeignKey      = "23503"
	CodeCheckViolation  = "23514"
	CodeUndefinedTable  = "42P01"
	CodeInvalidRequest  = "PGRST100"
	CodeInternal        = "XX000"
)

// Error is a datastore failure with a machine-readable code and a
// human-readable message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("datastore: %s (code %s, status %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("datastore: %s (code %s)", e.Message, e.Code)
}

// Unauthorized reports whether the datastore rejected the bearer.
func (e *Error) Unauthorized() bool {
	return e.Code == CodeJWTExpired || e.Status == 401
}

// CodeOf returns the datastore code carried by err, or "".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNoRows reports whether err is the "no rows returned" signal that a
// single-row lookup produces for an absent record.
func IsNoRows(err error) bool {
	return CodeOf(err) == CodeNoRows
}
