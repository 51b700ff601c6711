package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Provider error classes. The vision analyzer wraps the upstream failure
	// with exactly one of these so the fallback loop can branch on errors.Is.
	ErrProviderQuota    = errors.New("provider quota exhausted")
	ErrModelNotFound    = errors.New("model not found")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrEmptyResponse    = errors.New("empty model response")
	ErrProviderFatal    = errors.New("provider failure")
)
