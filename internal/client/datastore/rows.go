package datastore

import (
	"encoding/json"
	"fmt"
)

// Row is one record keyed by column name.
type Row map[string]any

// Rows is a record set.
type Rows []Row

// Decode converts the row into dst (a pointer to a struct with json tags).
func (r Row) Decode(dst any) error {
	return decode(r, dst)
}

// Decode converts the record set into dst (a pointer to a slice).
func (r Rows) Decode(dst any) error {
	if r == nil {
		r = Rows{}
	}
	return decode(r, dst)
}

func decode(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	return nil
}

// Single narrows a result to exactly one row. Zero rows yields an *Error
// with CodeNoRows, more than one yields CodeMultipleRows.
func Single(rows Rows, err error) (Row, error) {
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 1:
		return rows[0], nil
	case 0:
		return nil, &Error{Code: CodeNoRows, Message: "JSON object requested, multiple (or no) rows returned", Details: "The result contains 0 rows", Status: 406}
	default:
		return nil, &Error{Code: CodeMultipleRows, Message: "JSON object requested, multiple (or no) rows returned", Details: fmt.Sprintf("The result contains %d rows", len(rows)), Status: 406}
	}
}
