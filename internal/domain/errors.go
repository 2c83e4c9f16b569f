package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidIntent    = errors.New("invalid intent")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrContentRejected  = errors.New("content rejected")
	ErrProviderFailure  = errors.New("provider failure")
	ErrRenderTimeout    = errors.New("render timeout")
	ErrValidationFailed = errors.New("validation below threshold")
)
