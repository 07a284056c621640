// Package errors carries the ledger's error codes from the domain layer to
// the HTTP and Pub/Sub edges.
package errors

import (
	stdErrors "errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeHierarchyMismatch  Code = "HIERARCHY_MISMATCH"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit          Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces to callers. Details are only echoed for
// codes where they help the client fix the request.
type Metadata struct {
	HTTPStatus     int
	GRPCCode       codes.Code
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         {http.StatusBadRequest, codes.InvalidArgument, false, "validation failed", true},
	CodeUnauthorized:       {http.StatusUnauthorized, codes.Unauthenticated, false, "authentication required", false},
	CodeForbidden:          {http.StatusForbidden, codes.PermissionDenied, false, "access denied", false},
	CodeNotFound:           {http.StatusNotFound, codes.NotFound, false, "resource not found", false},
	CodeAlreadyExists:      {http.StatusConflict, codes.AlreadyExists, false, "resource already exists", false},
	CodeFailedPrecondition: {http.StatusUnprocessableEntity, codes.FailedPrecondition, false, "operation not allowed in current state", true},
	CodeHierarchyMismatch:  {http.StatusUnprocessableEntity, codes.FailedPrecondition, false, "hierarchy chain mismatch", true},
	CodeInsufficientStock:  {http.StatusConflict, codes.ResourceExhausted, false, "insufficient stock", true},
	CodeIdempotency:        {http.StatusConflict, codes.Aborted, false, "idempotency key reused", true},
	CodeRateLimit:          {http.StatusTooManyRequests, codes.ResourceExhausted, true, "rate limit exceeded", false},
	CodeInternal:           {http.StatusInternalServerError, codes.Internal, true, "internal server error", false},
	CodeDependency:         {http.StatusServiceUnavailable, codes.Unavailable, true, "dependency unavailable", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure with an optional cause and client-facing details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is/As. A nil err behaves like New.
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

// GRPCStatus lets status.FromError classify ledger errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(MetadataFor(e.Code()).GRPCCode, e.Message())
}

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf reports the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether the same request may succeed later.
func Retryable(err error) bool {
	return err != nil && MetadataFor(CodeOf(err)).Retryable
}
