package database

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection marks a database that cannot be reached. Fatal to a session.
	ErrConnection = errors.New("database connection error")

	// ErrUnknownTable is returned when schema is requested for a missing table.
	ErrUnknownTable = errors.New("table not found")

	// ErrReadOnly rejects statements that could modify the database.
	ErrReadOnly = errors.New("only read-only SELECT or WITH statements may be executed")
)

// ExecutionError carries the database's raw message for a failed query. It is
// not fatal; callers route the message back to the drafting model.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func connectionError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
}
