// Package errors carries the typed error codes shared by services and the
// HTTP layer. Services pick a code; api/responses turns it into a status and
// a public message.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeUpstream      Code = "UPSTREAM_ERROR"
	CodePersistence   Code = "PERSISTENCE_ERROR"
	CodeSignature     Code = "SIGNATURE_INVALID"
)

// Metadata describes how a code is rendered to API callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type codeInfo struct {
	Metadata
	// surfaced codes echo the typed message instead of PublicMessage.
	surfaced bool
}

// Flags for the table below.
const (
	retry   = true
	details = true
	surface = true
)

func info(status int, public string, retryable, detailsAllowed, surfaced bool) codeInfo {
	return codeInfo{
		Metadata: Metadata{
			HTTPStatus:     status,
			Retryable:      retryable,
			PublicMessage:  public,
			DetailsAllowed: detailsAllowed,
		},
		surfaced: surfaced,
	}
}

var codes = map[Code]codeInfo{
	CodeValidation:    info(http.StatusBadRequest, "validation failed", false, details, surface),
	CodeUnauthorized:  info(http.StatusUnauthorized, "authentication required", false, false, surface),
	CodeForbidden:     info(http.StatusForbidden, "access denied", false, false, surface),
	CodeNotFound:      info(http.StatusNotFound, "resource not found", false, false, surface),
	CodeConflict:      info(http.StatusConflict, "conflict detected", false, false, surface),
	CodeRateLimit:     info(http.StatusTooManyRequests, "rate limit exceeded", false, false, surface),
	CodeSignature:     info(http.StatusBadRequest, "invalid signature", false, false, surface),
	CodeInternal:      info(http.StatusInternalServerError, "internal server error", retry, false, false),
	CodeDependency:    info(http.StatusServiceUnavailable, "dependency unavailable", retry, details, false),
	CodeConfiguration: info(http.StatusInternalServerError, "service is not configured", false, false, false),
	CodeUpstream:      info(http.StatusInternalServerError, "payment provider request failed", retry, false, false),
	CodePersistence:   info(http.StatusInternalServerError, "could not save changes", retry, false, false),
}

func lookup(code Code) codeInfo {
	if ci, ok := codes[code]; ok {
		return ci
	}
	return codes[CodeInternal]
}

// MetadataFor returns the rendering rules for code. Unknown codes render as
// internal errors.
func MetadataFor(code Code) Metadata {
	return lookup(code).Metadata
}

// ClientFacing reports whether the typed message may be shown to callers verbatim.
func ClientFacing(code Code) bool {
	ci, ok := codes[code]
	return ok && ci.surfaced
}

// Error is a coded error with an optional cause and client details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets the client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
