package rawendpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"

	"github.com/broady/rawendpoints/validation"
	"github.com/go-playground/validator/v10"
)

// ErrorCode is the machine-readable code of an [Error].
type ErrorCode string

// Codes produced by the runtime. Handlers may return any of them.
const (
	CodeInvalidArgument  ErrorCode = "invalid_argument"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeConflict         ErrorCode = "conflict"
	CodeRequestTooLarge  ErrorCode = "request_too_large"
	CodeCanceled         ErrorCode = "canceled"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	CodeNotImplemented   ErrorCode = "not_implemented"
	CodeInternal         ErrorCode = "internal"
)

// statusClientClosedRequest is nginx's status for requests the client gave up on.
const statusClientClosedRequest = 499

var codeStatus = map[ErrorCode]int{
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeConflict:         http.StatusConflict,
	CodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	CodeCanceled:         statusClientClosedRequest,
	CodeDeadlineExceeded: http.StatusGatewayTimeout,
	CodeNotImplemented:   http.StatusNotImplemented,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the response status for c. Unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is written as {"error": {...}} for failed requests.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError returns an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf is NewError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithDetail returns a copy of e with details[key] set to value.
func (e *Error) WithDetail(key string, value any) *Error {
	out := *e
	out.Details = maps.Clone(e.Details)
	if out.Details == nil {
		out.Details = make(map[string]any, 1)
	}
	out.Details[key] = value
	return &out
}

// ErrorTransformer maps an application error to an endpoint error.
// Returning nil defers to DefaultErrorTransformer.
type ErrorTransformer func(error) *Error

// contextErrors maps context sentinels to their endpoint errors.
var contextErrors = []struct {
	target error
	code   ErrorCode
	msg    string
}{
	{context.DeadlineExceeded, CodeDeadlineExceeded, "request timeout"},
	{context.Canceled, CodeCanceled, "context canceled"},
}

// DefaultErrorTransformer maps err to an endpoint error:
//   - an *Error anywhere in the chain is returned as is;
//   - context errors and oversized bodies get their own codes;
//   - validator.ValidationErrors become invalid_argument with per-field details;
//   - errors.Join takes the code of its first error and keeps every message;
//   - anything else is internal.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}
	var epErr *Error
	if errors.As(err, &epErr) {
		return epErr
	}
	for _, ce := range contextErrors {
		if errors.Is(err, ce.target) {
			return NewError(ce.code, ce.msg)
		}
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return Errorf(CodeRequestTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
	}
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		return fromValidationErrors(valErrs)
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return fromJoined(errs)
		}
	}
	return NewError(CodeInternal, err.Error())
}

// fromValidationErrors covers handlers that call a validator directly and
// return its errors unchanged.
func fromValidationErrors(valErrs validator.ValidationErrors) *Error {
	out := &Error{Code: CodeInvalidArgument, Details: make(map[string]any, len(valErrs))}
	messages := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		msg := validation.Message(fe)
		out.Details[validation.FieldPath(fe)] = msg
		messages = append(messages, msg)
	}
	out.Message = strings.Join(messages, "; ")
	return out
}

func fromJoined(errs []error) *Error {
	first := DefaultErrorTransformer(errs[0])
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Error()
	}
	return &Error{Code: first.Code, Message: strings.Join(messages, "; "), Details: first.Details}
}

func writeError(w http.ResponseWriter, epErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(epErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, epErr); err != nil {
		logger.Error("failed to encode error response",
			slog.String("code", string(epErr.Code)),
			slog.String("message", epErr.Message),
			slog.Any("error", err))
	}
}
