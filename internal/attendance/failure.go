package attendance

import (
	"net/http"
)

// Code is the closed set of mark failures surfaced to operators.
type Code string

const (
	CodeInvalidToken           Code = "InvalidToken"
	CodeUnauthorized           Code = "Unauthorized"
	CodeInsufficientPermission Code = "InsufficientPermission"
	CodeNotFound               Code = "NotFound"
	CodeDisqualified           Code = "Disqualified"
	CodeScheduleMismatch       Code = "ScheduleMismatch"
	CodeInternal               Code = "InternalError"
)

// HTTPStatus maps a code to its response status. Unknown codes map to 500.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidToken, CodeDisqualified, CodeScheduleMismatch:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInsufficientPermission:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Failure is a typed mark failure. Message is safe to show to an operator; Err carries the
// internal cause, if any, and is only logged.
type Failure struct {
	Code    Code
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Code) + ": " + f.Message + ": " + f.Err.Error()
	}
	return string(f.Code) + ": " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(code Code, msg string) *Failure {
	return &Failure{Code: code, Message: msg}
}

func internal(msg string, err error) *Failure {
	return &Failure{Code: CodeInternal, Message: msg, Err: err}
}
