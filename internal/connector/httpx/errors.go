package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxMessageLen = 512

// APIError is a non-success response from an upstream API.
type APIError struct {
	Service    string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Service, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d %s: %s", e.Service, e.StatusCode, e.Status, e.Message)
}

// IsRateLimited returns true if this is a rate limit error.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError returns true if this is a server error.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsAuth returns true for 401/403 responses.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewAPIError builds an APIError from a response status and body.
// The body may be JSON carrying a "message" or "error" field, or opaque text.
func NewAPIError(service string, statusCode int, body []byte) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Message:    messageFromBody(body),
	}
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		for _, key := range []string{"message", "error", "error_description"} {
			switch v := payload[key].(type) {
			case string:
				if v != "" {
					return truncate(v)
				}
			case map[string]any:
				if msg, ok := v["message"].(string); ok && msg != "" {
					return truncate(msg)
				}
			}
		}
	}

	return truncate(trimmed)
}

// truncate cuts s to at most maxMessageLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
