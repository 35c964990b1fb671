package engine

import (
	"errors"
	"fmt"
)

// QueryError is a failure to build or run a client's query.
//
// Query errors are delivered to the client as its result; nothing retries
// them. The next filter or spec change re-issues the query.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Client identifies the affected query client.
	Client string

	// SQL is the statement that failed, when one was compiled.
	SQL string

	// Err is the underlying error.
	Err error
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeQueryBuild indicates the client could not build or compile
	// its query.
	ErrCodeQueryBuild QueryErrorCode = "QUERY_BUILD"

	// ErrCodeQueryExec indicates the backend rejected or failed the query.
	ErrCodeQueryExec QueryErrorCode = "QUERY_EXEC"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Client != "" {
		return fmt.Sprintf("%s: %v (client=%s)", e.Code, e.Err, e.Client)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsQueryError returns true if err is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsExecError returns true if err is a backend execution failure.
func IsExecError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeQueryExec
	}
	return false
}
