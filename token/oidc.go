package token

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"golang.org/x/oauth2"
)

// OIDCValidator validates access tokens issued by an external OpenID Connect provider. Tokens
// that verify as ID tokens for the configured client are accepted locally; anything else is
// checked against the provider's userinfo endpoint.
type OIDCValidator struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

var _ Validator = (*OIDCValidator)(nil)

// NewOIDCValidator discovers issuer. clientID may be empty, in which case only the userinfo
// endpoint is used.
func NewOIDCValidator(ctx context.Context, issuer, clientID string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCValidator] discover %s: %w", issuer, err)
	}
	v := &OIDCValidator{provider: provider}
	if clientID != "" {
		v.verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	}
	return v, nil
}

func (v *OIDCValidator) ValidateAccessToken(ctx context.Context, rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, zerrors.ErrInvalidToken
	}

	if v.verifier != nil {
		if idToken, err := v.verifier.Verify(ctx, rawToken); err == nil {
			return &Introspection{Active: true, Subject: idToken.Subject, ExpiresAt: idToken.Expiry}, nil
		}
	}

	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: rawToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return &Introspection{Active: false}, fmt.Errorf("%w: %v", zerrors.ErrTokenValidation, err)
	}
	return &Introspection{Active: true, Subject: info.Subject}, nil
}
