package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is an error response from the collection backend. Message holds
// the human-readable text extracted from the response body so backend issues
// can be diagnosed from the dashboard alone.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status: %d)", e.Message, e.StatusCode)
}

// IsAuthError reports whether the error is an authentication or
// authorization rejection.
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403)
}

// extractMessage pulls a human-readable error out of a backend response
// body. Precedence: message, error, details, raw body text, then a generic
// HTTP-status fallback.
func extractMessage(statusCode int, status string, body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Error != "":
			return envelope.Error
		case envelope.Details != "":
			return envelope.Details
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw != "" && raw != "{}" && raw != "[]" {
		return raw
	}

	if status != "" {
		return fmt.Sprintf("HTTP Error: %d - %s", statusCode, status)
	}
	return fmt.Sprintf("HTTP Error: %d", statusCode)
}
