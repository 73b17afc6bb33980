package coingecko

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors
var (
	ErrRateLimited = errors.New("rate limited by coingecko")
	ErrBadStatus   = errors.New("unexpected status")
)

// APIError wraps errors with context about the endpoint and coin
type APIError struct {
	Endpoint   string
	Coin       string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("endpoint=%s coin=%s status=%d: %v", e.Endpoint, e.Coin, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("endpoint=%s coin=%s: %v", e.Endpoint, e.Coin, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(endpoint, coin string, status int, err error) error {
	return &APIError{
		Endpoint:   endpoint,
		Coin:       coin,
		StatusCode: status,
		Err:        err,
	}
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// SharedHTTPClient returns an HTTP client with pooled keep-alive connections
func SharedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
