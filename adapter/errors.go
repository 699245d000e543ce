package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update targets a primary key with no record.
	ErrNotFound = errors.New("lattice: record not found")

	// ErrUnsupported is returned for relation or operator combinations that have
	// no implementation (disjunctive filters, key-list relations, eager loading
	// on multi-record reads).
	ErrUnsupported = errors.New("lattice: operation not supported")

	// ErrUnknownOperator is returned when a where clause names an operator that is
	// not present in any operator table.
	ErrUnknownOperator = errors.New("lattice: unknown operator")

	// ErrInvalidQuery is returned when a query cannot be normalized.
	ErrInvalidQuery = errors.New("lattice: invalid query")

	// ErrNoStore is returned when an Adapter is constructed without a store.
	ErrNoStore = errors.New("lattice: no store configured")
)

// UnsupportedError describes an operation that was rejected before reaching the store.
type UnsupportedError struct {
	Op     string
	Detail string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("lattice: %s: %s not supported", e.Op, e.Detail)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// OperatorError is returned by the translator for operators it cannot apply.
type OperatorError struct {
	Field    string
	Operator string
	Err      error
}

func (e *OperatorError) Error() string {
	if errors.Is(e.Err, ErrUnsupported) {
		return fmt.Sprintf("lattice: operator %q on field %q: operator not supported", e.Operator, e.Field)
	}
	return fmt.Sprintf("lattice: operator %q on field %q: %v", e.Operator, e.Field, e.Err)
}

func (e *OperatorError) Unwrap() error { return e.Err }

// NotFoundError carries the kind and key of a missing record.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("lattice: %s %v: record not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
