// Package errors provides the application error taxonomy for the WAV API.
// Service-layer code returns AppError values so handlers can reply with a
// stable code and status without leaking internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, optional caller-facing details
// and an optional internal error.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Internal   error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrNotOwned) holds for derived copies of a sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Details:    sentinel.Details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithDetails creates a new AppError carrying structured details for the caller,
// e.g. how long to wait before retrying.
func WithDetails(sentinel *AppError, details map[string]any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput          = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound              = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer        = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrProviderUnavailable   = &AppError{Code: "PROVIDER_UNAVAILABLE", Message: "An upstream provider is unavailable", StatusCode: http.StatusBadGateway}
	ErrProfileNotRegistered  = &AppError{Code: "PROFILE_NOT_REGISTERED", Message: "No profile exists for this account", StatusCode: http.StatusNotFound}
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrInvalidPipelineAPIKey = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)

// Profile errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail    = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "This username is taken", StatusCode: http.StatusConflict}
	ErrAlreadyRegistered = &AppError{Code: "ALREADY_REGISTERED", Message: "A profile already exists for this account", StatusCode: http.StatusConflict}
)

// Collection errors.
var (
	ErrCardNotFound      = &AppError{Code: "CARD_NOT_FOUND", Message: "Card not found", StatusCode: http.StatusNotFound}
	ErrNotOwned          = &AppError{Code: "NOT_OWNED", Message: "Card is not owned by this user", StatusCode: http.StatusBadRequest}
	ErrOwnershipMismatch = &AppError{Code: "OWNERSHIP_MISMATCH", Message: "Card ownership changed; refresh and retry", StatusCode: http.StatusBadRequest}
	ErrAlreadyOwned      = &AppError{Code: "ALREADY_OWNED", Message: "Card is already in this collection", StatusCode: http.StatusConflict}
	ErrCollectionFull    = &AppError{Code: "COLLECTION_FULL", Message: "Collection has reached the card limit", StatusCode: http.StatusBadRequest}
	ErrCooldownActive    = &AppError{Code: "COOLDOWN_ACTIVE", Message: "Unbox is cooling down", StatusCode: http.StatusTooManyRequests}
)

// Trade errors.
var (
	ErrTradeNotFound     = &AppError{Code: "TRADE_NOT_FOUND", Message: "Trade not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransition = &AppError{Code: "INVALID_TRANSITION", Message: "Trade is not pending", StatusCode: http.StatusBadRequest}
	ErrEmptyOffer        = &AppError{Code: "EMPTY_OFFER", Message: "Both sides of a trade must include at least one card", StatusCode: http.StatusBadRequest}
	ErrInvalidParties    = &AppError{Code: "INVALID_PARTIES", Message: "Cannot trade with yourself", StatusCode: http.StatusBadRequest}
)
