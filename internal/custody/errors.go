package custody

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a custody provider error response.
type APIError struct {
	StatusCode int            `json:"status_code"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("custody API error [%d]: %s (code: %s, details: %v)", e.StatusCode, e.Message, e.Code, e.Details)
	}
	return fmt.Sprintf("custody API error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
}

// IsNotFound returns true for a 404 response.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRateLimited returns true for a 429 response.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Permanent reports whether retrying the same request can never succeed
// (provider rejected it outright, e.g. unsupported asset).
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 &&
		!e.IsRateLimited() && e.StatusCode != http.StatusRequestTimeout
}

// IsPermanent classifies any gateway error as a permanent provider
// rejection versus a transient failure.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Permanent()
	}
	return false
}

// ErrStatusPollTimeout is returned when bounded status polling exhausts
// its attempt budget without a terminal status.
var ErrStatusPollTimeout = errors.New("transfer status poll timed out")
