// Package auth decides whether a bot platform callback may be handled. Each endpoint holds exactly
// one Strategy, chosen by Select from the endpoint's configuration.
package auth

import (
	"context"
	"net/http"
	"time"
)

// Strategy authorizes one inbound callback. Check never panics on a malformed payload; anything it
// cannot make sense of is simply not authorized.
type Strategy interface {
	Name() string
	Check(ctx context.Context, r *http.Request, payload []byte) bool
}

// PayloadReader extracts the auth-relevant parts of a platform payload. Implementations are pure.
type PayloadReader interface {
	// UserID identifies the caller, or returns "" when the payload carries no caller.
	UserID(payload []byte) string
	// AccessToken returns the bearer token embedded in the payload, or "".
	AccessToken(payload []byte) string
	// AuthDescription is shown to the operator when the caller asks for access.
	AuthDescription(payload []byte) string
}

// DefaultValidateTimeout bounds a single identity provider validation call.
const DefaultValidateTimeout = 5 * time.Second

const (
	NameStaticToken        = "static_token"
	NameLongLivedToken     = "long_lived_token"
	NameOAuthBridge        = "oauth_bridge"
	NameInteractiveConsent = "interactive_consent"
)
