package auth

import (
	"context"
	"errors"
	"time"

	"github.com/inevity/zhibot/token"
	"github.com/rs/zerolog/log"
)

// tokenCheck validates the access token embedded in a payload against the identity provider.
type tokenCheck struct {
	validator token.Validator
	reader    PayloadReader
	timeout   time.Duration
}

func (c tokenCheck) check(ctx context.Context, payload []byte) bool {
	raw := c.reader.AccessToken(payload)
	if raw == "" {
		log.Debug().Msg("auth: payload carries no access token")
		return false
	}
	return c.validate(ctx, raw)
}

func (c tokenCheck) validate(ctx context.Context, raw string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.timeout
	if timeout <= 0 {
		timeout = DefaultValidateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	in, err := c.validator.ValidateAccessToken(ctx, raw)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Err(err).Msg("auth: access token validation timed out")
		} else {
			log.Debug().Err(err).Msg("auth: access token rejected")
		}
		return false
	}
	return in != nil && in.Active
}
