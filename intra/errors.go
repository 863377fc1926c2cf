package intra

import (
	"errors"
	"fmt"
)

// Sentinel errors for API outcomes that carry no extra data.
var (
	// ErrAuthExpired is a 401 from the resource API, or a missing
	// session token.
	ErrAuthExpired = errors.New("session expired")

	// ErrRateLimited is a 429: the API limits by quota.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork is a transport-level failure with no HTTP response.
	ErrNetwork = errors.New("network failure")
)

// ValidationError is bad local input rejected before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NotFoundError is a 404 for a specific login.
type NotFoundError struct {
	Login string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Login)
}

// APIError is any other non-2xx response. Message comes from the body's
// error description when parseable, else a generic fallback.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// apiErrorBody is the error object the API returns alongside non-2xx
// statuses.
type apiErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// UserMessage translates a typed error into the one short user-facing
// string for its case. Typed errors themselves never carry UI text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var notFound *NotFoundError
	var validation *ValidationError
	var apiErr *APIError

	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("User %q not found", notFound.Login)
	case errors.Is(err, ErrAuthExpired):
		return "Session expired, please login again"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests, please wait a moment"
	case errors.Is(err, ErrNetwork):
		return "Network error, check your connection"
	case errors.As(err, &validation):
		return validation.Reason
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return "An error occurred"
	}
}
