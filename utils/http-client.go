package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns the shared outbound HTTP client used for calls to
// the other platform services.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}
