package token

import (
	"context"
	"time"

	"github.com/inevity/zhibot/token/refresh"
)

// LifetimeExtenderName identifies the lifetime extender in Provider.Install.
const LifetimeExtenderName = "lifetime_extender"

// ExtendedAccessTokenExpiration is the lifetime the extender assigns to default-lifetime grants.
const ExtendedAccessTokenExpiration = 365 * 24 * time.Hour

// LifetimeExtender rewrites the access token lifetime of every grant that would otherwise get the
// provider default, so that voice platforms which never refresh keep working for a year.
//
// The extender wraps the provider's issuance pipeline, not an endpoint: once installed, every grant
// issued by that provider is affected, including grants for clients unrelated to bots. Grants that
// ask for an explicit non-default lifetime pass through unchanged.
type LifetimeExtender struct {
	defaultExpiration  time.Duration
	extendedExpiration time.Duration
}

var _ Middleware = (*LifetimeExtender)(nil)

// NewLifetimeExtender returns an extender that turns defaultExpiration (and zero) into extended.
func NewLifetimeExtender(defaultExpiration, extended time.Duration) *LifetimeExtender {
	if defaultExpiration == 0 {
		defaultExpiration = DefaultAccessTokenExpiration
	}
	if extended == 0 {
		extended = ExtendedAccessTokenExpiration
	}
	return &LifetimeExtender{defaultExpiration: defaultExpiration, extendedExpiration: extended}
}

func (e *LifetimeExtender) Name() string { return LifetimeExtenderName }

func (e *LifetimeExtender) Wrap(next IssueFunc) IssueFunc {
	return func(ctx context.Context, req GrantRequest) (*refresh.StoredRefreshToken, error) {
		if req.AccessTokenExpiration == 0 || req.AccessTokenExpiration == e.defaultExpiration {
			req.AccessTokenExpiration = e.extendedExpiration
		}
		return next(ctx, req)
	}
}
