package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the gateway. None of these is ever allowed to escape an endpoint as a crash;
// each is mapped to a response envelope or a log line.
var (
	// Request errors
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrHandlerFailure   = errors.New("handler failure")

	// Storage errors
	ErrPersistence = errors.New("persistence failure")

	// Token errors
	ErrTokenValidation     = errors.New("token validation failed")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Client errors
	ErrInvalidClient       = errors.New("invalid client")
	ErrInvalidClientSecret = errors.New("invalid client secret")
	ErrInvalidGrant        = errors.New("invalid grant")
	ErrInvalidRequest      = errors.New("invalid request")

	// Configuration errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownPlatform = errors.New("unknown platform")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is a passthrough to the standard library constructor so callers need a single import.
func New(text string) error {
	return errors.New(text)
}
