package auth

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/inevity/zhibot/token"
	"github.com/rs/zerolog/log"
)

// LongLivedToken authorizes callers whose payload carries an access token the identity provider
// accepts. The endpoint is configured with a long-lived credential, given literally or as a file
// path, which the operator pastes into the platform's account linking.
type LongLivedToken struct {
	tokenCheck
	credential string
}

var _ Strategy = (*LongLivedToken)(nil)

// NewLongLivedToken loads the configured credential once. A missing or unreadable file leaves the
// strategy with no credential; callers are still checked against the identity provider.
func NewLongLivedToken(ctx context.Context, literal, file string, validator token.Validator, reader PayloadReader,
	timeout time.Duration) *LongLivedToken {
	s := &LongLivedToken{
		tokenCheck: tokenCheck{validator: validator, reader: reader, timeout: timeout},
		credential: strings.TrimSpace(literal),
	}
	if s.credential == "" && file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Warn().Err(err).Str("file", file).Msg("auth: no long-lived token configured")
		} else {
			s.credential = strings.TrimSpace(string(data))
		}
	}

	switch {
	case s.credential == "":
		log.Warn().Msg("auth: long-lived token is empty")
	case s.validate(ctx, s.credential):
		log.Info().Msg("auth: long-lived token accepted by identity provider")
	default:
		log.Warn().Msg("auth: long-lived token rejected by identity provider")
	}
	return s
}

func (s *LongLivedToken) Name() string { return NameLongLivedToken }

// Configured reports whether a credential was loaded.
func (s *LongLivedToken) Configured() bool { return s.credential != "" }

func (s *LongLivedToken) Check(ctx context.Context, _ *http.Request, payload []byte) bool {
	return s.check(ctx, payload)
}
