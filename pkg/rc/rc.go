package rc

import (
	"errors"
	"fmt"
)

// Code identifies the outcome of an operation. The string values are part of
// the client protocol and must stay stable.
type Code string

const (
	Success                          Code = "SUCCESS"
	RecordEOF                        Code = "RECORD_EOF"
	InvalidArgument                  Code = "INVALID_ARGUMENT"
	Unimplemented                    Code = "UNIMPLEMENTED"
	Internal                         Code = "INTERNAL"
	SchemaFieldTypeMismatch          Code = "SCHEMA_FIELD_TYPE_MISMATCH"
	SchemaFieldMissing               Code = "SCHEMA_FIELD_MISSING"
	RecordNoMem                      Code = "RECORD_NOMEM"
	RecordNotExist                   Code = "RECORD_NOT_EXIST"
	RecordInvalidRID                 Code = "RECORD_INVALID_RID"
	IOErrRead                        Code = "IOERR_READ"
	IOErrWrite                       Code = "IOERR_WRITE"
	IOErrClose                       Code = "IOERR_CLOSE"
	IOErrTooLong                     Code = "IOERR_TOO_LONG"
	FileNotExist                     Code = "FILE_NOT_EXIST"
	SchemaMaterializedViewNameRepeat Code = "SCHEMA_MATERIALIZED_VIEW_NAME_REPEAT"
)

// Error carries a protocol code together with a human readable detail line.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// New creates an error with the given code and detail.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Errorf creates an error with the given code and a formatted detail.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol code from err. A nil error maps to Success and
// an error without an embedded code maps to Internal.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool { return CodeOf(err) == code }

// IsEOF reports end-of-scan, the normal loop-termination condition.
func IsEOF(err error) bool { return Is(err, RecordEOF) }

// EOF returns a new end-of-scan error.
func EOF() *Error { return &Error{Code: RecordEOF} }
