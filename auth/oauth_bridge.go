package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/inevity/zhibot/token"
	"github.com/rs/zerolog/log"
)

// Installer accepts issuance middlewares.
type Installer interface {
	Install(mw token.Middleware) bool
}

// OAuthBridge authorizes callers whose payload carries a valid access token obtained through the
// platform's account linking. Constructing one installs the lifetime extender into the identity
// provider, because the platforms never refresh.
type OAuthBridge struct {
	tokenCheck
}

var _ Strategy = (*OAuthBridge)(nil)

func NewOAuthBridge(validator token.Validator, installer Installer, extender token.Middleware, reader PayloadReader,
	timeout time.Duration) *OAuthBridge {
	if installer != nil && extender != nil && installer.Install(extender) {
		log.Warn().Str("middleware", extender.Name()).
			Msg("auth: token lifetime extender installed; every default-lifetime grant issued by this process now lives one year")
	}
	return &OAuthBridge{tokenCheck: tokenCheck{validator: validator, reader: reader, timeout: timeout}}
}

func (s *OAuthBridge) Name() string { return NameOAuthBridge }

func (s *OAuthBridge) Check(ctx context.Context, _ *http.Request, payload []byte) bool {
	return s.check(ctx, payload)
}
