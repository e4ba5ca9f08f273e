package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/consentui"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/token"
)

// Deps are the collaborators strategies may need. Only the ones the selected strategy uses must
// be set.
type Deps struct {
	Validator       token.Validator
	Installer       Installer
	Extender        token.Middleware
	Consent         *consent.Store
	UI              consentui.UI
	ValidateTimeout time.Duration
}

// Target describes the endpoint a strategy guards.
type Target struct {
	Name         string
	StoragePath  string
	Reader       PayloadReader
	OAuthCapable bool
}

// Select picks the strategy for a bot: a static token when one is configured, then a long-lived
// token, then the OAuth bridge for platforms with account linking, and interactive consent
// otherwise.
func Select(ctx context.Context, cfg config.BotConfig, target Target, deps Deps) (Strategy, error) {
	if target.Reader == nil {
		return nil, fmt.Errorf("[auth Select] %w: %s has no payload reader", zerrors.ErrInvalidConfig, target.Name)
	}

	switch {
	case cfg.Token != "":
		return NewStaticToken(cfg.Token), nil

	case cfg.HasLongLivedToken():
		if deps.Validator == nil {
			return nil, fmt.Errorf("[auth Select] %w: %s needs an identity provider", zerrors.ErrInvalidConfig, target.Name)
		}
		return NewLongLivedToken(ctx, cfg.LongLivedToken, cfg.LongLivedTokenFile, deps.Validator, target.Reader,
			deps.ValidateTimeout), nil

	case target.OAuthCapable:
		if deps.Validator == nil {
			return nil, fmt.Errorf("[auth Select] %w: %s needs an identity provider", zerrors.ErrInvalidConfig, target.Name)
		}
		return NewOAuthBridge(deps.Validator, deps.Installer, deps.Extender, target.Reader, deps.ValidateTimeout), nil

	default:
		if deps.Consent == nil || deps.UI == nil {
			return nil, fmt.Errorf("[auth Select] %w: %s needs a consent store and UI", zerrors.ErrInvalidConfig, target.Name)
		}
		if target.StoragePath == "" {
			return nil, fmt.Errorf("[auth Select] %w: %s has no consent storage path", zerrors.ErrInvalidConfig, target.Name)
		}
		return NewInteractiveConsent(target.Name, target.StoragePath, deps.Consent, deps.UI, target.Reader), nil
	}
}
