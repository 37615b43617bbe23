package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate")
	ErrNoResponseAvailable = errors.New("no response available to approve")
	ErrAlreadyResponded    = errors.New("review already responded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownPlatform     = errors.New("unknown platform")
	ErrInvalidState        = errors.New("invalid or expired oauth state")
)

// TokenRefreshError means the platform rejected the refresh-token grant.
// The integration needs user re-consent; callers must not retry.
type TokenRefreshError struct {
	Platform Platform
	Body     string
	Err      error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("%s: token refresh rejected: %v", e.Platform, e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

func (e *TokenRefreshError) Is(target error) bool { return target == ErrUnauthorized }

// AuthorizationExchangeError carries the raw platform body of a failed code exchange.
type AuthorizationExchangeError struct {
	Platform   Platform
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthorizationExchangeError) Error() string {
	return fmt.Sprintf("%s: authorization code exchange failed (status %d): %s", e.Platform, e.StatusCode, e.Body)
}

func (e *AuthorizationExchangeError) Unwrap() error { return e.Err }

func (e *AuthorizationExchangeError) Is(target error) bool { return target == ErrUnauthorized }

// PlatformSyncError is a network or parse failure talking to one platform.
type PlatformSyncError struct {
	Platform Platform
	Op       string
	Err      error
}

func (e *PlatformSyncError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *PlatformSyncError) Unwrap() error { return e.Err }

type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation failed: " + e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }
