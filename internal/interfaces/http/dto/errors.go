package dto

import "net/http"

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request validation fails
	ErrCodeValidation = "VALIDATION_ERROR"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "NOT_FOUND"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes.
// Codes not listed fall back to 500 so an unexpected domain error never
// masquerades as a client mistake.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	// Input errors -> 400 Bad Request
	"INVALID_INPUT":  http.StatusBadRequest,
	"INVALID_AMOUNT": http.StatusBadRequest,

	// Missing resources -> 404 Not Found
	ErrCodeNotFound:      http.StatusNotFound,
	"LINE_NOT_FOUND":     http.StatusNotFound,
	"CREDIT_NOT_FOUND":   http.StatusNotFound,
	"ACCOUNT_NOT_FOUND":  http.StatusNotFound,
	"DOCUMENT_NOT_FOUND": http.StatusNotFound,
	"ENTRY_NOT_FOUND":    http.StatusNotFound,

	// State conflicts -> 409 Conflict
	"ALREADY_EXISTS":         http.StatusConflict,
	"ALREADY_REVERSED":       http.StatusConflict,
	"CONCURRENCY_CONFLICT":   http.StatusConflict,
	"INVALID_STATE":          http.StatusConflict,
	"DUPLICATE_ACCOUNT_CODE": http.StatusConflict,

	// Business rule violations -> 422 Unprocessable Entity
	"OVER_ALLOCATION":          http.StatusUnprocessableEntity,
	"INSUFFICIENT_CREDIT":      http.StatusUnprocessableEntity,
	"UNBALANCED_ALLOCATION":    http.StatusUnprocessableEntity,
	"INSTRUMENT_MISMATCH":      http.StatusUnprocessableEntity,
	"COUNTERPARTY_MISMATCH":    http.StatusUnprocessableEntity,
	"ACCOUNT_NOT_POSTABLE":     http.StatusUnprocessableEntity,
	"INVALID_ACCOUNT_PARENT":   http.StatusUnprocessableEntity,
	"PARENT_ACCOUNT_NOT_FOUND": http.StatusUnprocessableEntity,
	"ACCOUNT_CYCLE":            http.StatusUnprocessableEntity,
	"UNMAPPED_ACCOUNT_ROLE":    http.StatusUnprocessableEntity,

	// IMBALANCED_ENTRY means the posting rule table produced an entry
	// whose debits and credits differ. That is a server defect, never
	// a caller mistake.
	"IMBALANCED_ENTRY": http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
