package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownProcedure is wrapped by NOT_FOUND errors for unregistered paths.
var ErrUnknownProcedure = errors.New("unknown procedure")

// ErrorCode is a tRPC error code.
type ErrorCode string

const (
	CodeParseError         ErrorCode = "PARSE_ERROR"
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeMethodNotSupported ErrorCode = "METHOD_NOT_SUPPORTED"
	CodePayloadTooLarge    ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeInternal           ErrorCode = "INTERNAL_SERVER_ERROR"
)

var codeTable = map[ErrorCode]struct {
	rpc    int
	status int
}{
	CodeParseError:         {-32700, http.StatusBadRequest},
	CodeBadRequest:         {-32600, http.StatusBadRequest},
	CodeNotFound:           {-32004, http.StatusNotFound},
	CodeMethodNotSupported: {-32005, http.StatusMethodNotAllowed},
	CodePayloadTooLarge:    {-32013, http.StatusRequestEntityTooLarge},
	CodeInternal:           {-32603, http.StatusInternalServerError},
}

// JSONRPCCode returns the numeric JSON-RPC code for c.
func (c ErrorCode) JSONRPCCode() int {
	if e, ok := codeTable[c]; ok {
		return e.rpc
	}
	return codeTable[CodeInternal].rpc
}

// HTTPStatus returns the HTTP status for c.
func (c ErrorCode) HTTPStatus() int {
	if e, ok := codeTable[c]; ok {
		return e.status
	}
	return http.StatusInternalServerError
}

// Error is a procedure failure with a tRPC code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError returns an *Error with code and message wrapping cause (may be nil).
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// AsError converts any error to an *Error; unknown errors become INTERNAL_SERVER_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error(), Cause: err}
}
