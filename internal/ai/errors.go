package ai

import "errors"

var (
	// ErrProviderUnavailable means the reasoning backend could not be
	// reached at all, on the primary and the fallback model alike.
	ErrProviderUnavailable = errors.New("reasoning backend unavailable")
	// ErrModelRejected means the backend refused the requested model
	// (unknown id, quota exhausted for that model). Callers retry once
	// with the fallback model.
	ErrModelRejected = errors.New("reasoning model rejected")
	// ErrInvalidResponse means the backend answered but the payload
	// carried no usable assistant content.
	ErrInvalidResponse = errors.New("reasoning backend returned invalid response")
)
