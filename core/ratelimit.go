package core

import (
	"context"
	"errors"
)

// ErrRateLimited is returned by RateLimiter.Allow when a key has exhausted its
// window allowance.
var ErrRateLimited = errors.New("too many requests, retry later")

// RateLimiter limits how often an operation may run for a given key.
type RateLimiter interface {
	// Allow records one hit for key and returns ErrRateLimited when key has
	// exceeded its allowance for the current window.
	Allow(ctx context.Context, key string) error
}
