package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeNotFound indicates the id references a row that no longer exists.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConstraint indicates a constraint violation (unknown book, bad column).
	CodeConstraint ErrorCode = "CONSTRAINT"

	// CodeWriteFailed indicates the underlying durable write failed.
	CodeWriteFailed ErrorCode = "WRITE_FAILED"

	// CodeSchemaTooNew indicates the database was written by a newer schema.
	CodeSchemaTooNew ErrorCode = "SCHEMA_TOO_NEW"
)

// Error is returned by Store operations.
type Error struct {
	Code  ErrorCode
	Op    string
	Table string
	ID    int64
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Table != "" {
		msg += " " + e.Table
	}
	if e.ID != 0 {
		msg += fmt.Sprintf(" (id=%d)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NOT_FOUND store error.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConstraint reports whether err is a CONSTRAINT store error.
func IsConstraint(err error) bool {
	return hasCode(err, CodeConstraint)
}

// IsWriteError reports whether err is a WRITE_FAILED store error.
func IsWriteError(err error) bool {
	return hasCode(err, CodeWriteFailed)
}

// IsSchemaTooNew reports whether err is a SCHEMA_TOO_NEW store error.
func IsSchemaTooNew(err error) bool {
	return hasCode(err, CodeSchemaTooNew)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func notFound(op, table string, id int64) *Error {
	return &Error{Code: CodeNotFound, Op: op, Table: table, ID: id}
}

// writeError classifies a driver error from a write. SQLite constraint
// failures become CONSTRAINT; everything else is WRITE_FAILED.
func writeError(op, table string, id int64, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	code := CodeWriteFailed
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		code = CodeConstraint
	}
	return &Error{Code: code, Op: op, Table: table, ID: id, Err: err}
}
