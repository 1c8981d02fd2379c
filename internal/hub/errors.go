package hub

import "errors"

// Common errors returned by the Hub client.
var (
	// ErrNotFound indicates the dataset repository does not exist.
	ErrNotFound = errors.New("dataset not found on the Hub")

	// ErrUnauthorized indicates a missing or rejected access token.
	ErrUnauthorized = errors.New("Hub authorization error")

	// ErrRateLimited indicates the Hub throttled the request.
	ErrRateLimited = errors.New("Hub rate limit exceeded")

	// ErrAPIError indicates a general API error.
	ErrAPIError = errors.New("Hub API error")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with the Hub")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from the Hub")
)
