package adapter

import (
	"fmt"
	"net/http"

	"portal_sync/internal/domain"
)

// APIError is a non-2xx response from a portal API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api: status %d: %s", e.StatusCode, e.Body)
}

// retryableStatus decides the failure class per status code. Transport
// errors and timeouts never reach this path and stay retryable. Unknown
// codes default to retryable so transient remote weirdness is not
// silently dropped; the attempt cap still bounds them.
func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	case code >= 400:
		return false
	default:
		return true
	}
}

// classifyStatus wraps a failed response into the dispatcher's taxonomy.
func classifyStatus(code int, body string) error {
	apiErr := &APIError{StatusCode: code, Body: body}
	if retryableStatus(code) {
		return apiErr
	}
	return domain.Terminal(apiErr)
}
