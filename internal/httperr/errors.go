// Package httperr writes JSON error responses shaped
// {"error": code, "error_description": description}.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes as constants
const (
	CodeInvalidRequest    = "invalid_request"
	CodeNotFound          = "not_found"
	CodeAccessDenied      = "access_denied"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeSuspiciousInput   = "suspicious_input"
	CodeUnsupportedFormat = "unsupported_format"
	CodeServerError       = "server_error"
)

// APIError represents an error response
type APIError struct {
	Code        string // error code (e.g., "invalid_request", "not_found")
	Description string // Human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// New creates a new API error
func New(code, description string, status int) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common errors as reusable constructors
var (
	// InvalidRequest indicates the request is malformed or missing required parameters
	InvalidRequest = func(desc string) *APIError {
		return New(CodeInvalidRequest, desc, http.StatusBadRequest)
	}

	// NotFound indicates the addressed record does not exist
	NotFound = func(desc string) *APIError {
		return New(CodeNotFound, desc, http.StatusNotFound)
	}

	// AccessDenied indicates the client is not allowed to make the request
	AccessDenied = func(desc string) *APIError {
		return New(CodeAccessDenied, desc, http.StatusForbidden)
	}

	// RateLimitExceeded indicates the client sent too many requests
	RateLimitExceeded = func(desc string) *APIError {
		return New(CodeRateLimitExceeded, desc, http.StatusTooManyRequests)
	}

	// SuspiciousInput indicates the request matched an attack pattern
	SuspiciousInput = func(desc string) *APIError {
		return New(CodeSuspiciousInput, desc, http.StatusBadRequest)
	}

	// ServerError indicates an internal error occurred
	ServerError = func(desc string) *APIError {
		return New(CodeServerError, desc, http.StatusInternalServerError)
	}
)

// Write encodes err as the JSON error body. Errors that are not an
// *APIError are reported as server_error without their message.
func Write(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = ServerError("internal error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             apiErr.Code,
		"error_description": apiErr.Description,
	})
}
