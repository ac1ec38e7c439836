// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotConfigured means no API key is available. It is fatal for the run.
	ErrNotConfigured = errors.New("extraction backend not configured: API key is missing")

	// ErrRateLimited marks a quota or throttling rejection from the provider.
	ErrRateLimited = errors.New("rate limited")

	// ErrSchema means a structured reply did not match the declared schema.
	ErrSchema = errors.New("response does not match schema")

	// ErrEmptyResponse means the provider returned no usable text.
	ErrEmptyResponse = errors.New("empty response")
)

// APIError is a non-2xx reply from the model endpoint.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // provider status, e.g. "RESOURCE_EXHAUSTED"
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("model API returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("model API returned %d: %s", e.Status, e.Message)
}

// Is makes errors.Is(err, ErrRateLimited) hold for throttling replies.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited &&
		(e.Status == http.StatusTooManyRequests || e.Code == "RESOURCE_EXHAUSTED")
}

// IsRetryable reports whether err indicates quota or rate limiting. Every
// other failure is permanent for the call that produced it.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota")
}
