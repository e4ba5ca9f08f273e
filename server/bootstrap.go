package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inevity/zhibot/auth"
	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/bot/platforms"
	"github.com/inevity/zhibot/clients"
	"github.com/inevity/zhibot/clients/memrepo"
	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/consentui"
	"github.com/inevity/zhibot/home"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/internal/metrics"
	"github.com/inevity/zhibot/token"
	"github.com/inevity/zhibot/token/refresh"
	refreshmem "github.com/inevity/zhibot/token/refresh/memrepo"
	"github.com/inevity/zhibot/token/refresh/sqliterepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Gateway is the assembled process: the HTTP host, its bot endpoints and the stores behind them.
type Gateway struct {
	Server     *Server
	Provider   *token.Provider
	Endpoints  []*bot.Endpoint
	Consent    *consent.Store
	Board      *consentui.Board
	Hub        home.Hub
	AdminToken string
}

// Bootstrap builds the gateway from the environment and the YAML file. reg receives the metrics
// collectors (the default registerer when nil).
func Bootstrap(ctx context.Context, cfg config.Config, file *config.File, reg prometheus.Registerer) (*Gateway, error) {
	if file == nil {
		file = &config.File{}
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("[Bootstrap] %w", err)
	}

	metricsHandler, err := metrics.Register(reg)
	if err != nil {
		return nil, fmt.Errorf("[Bootstrap] register metrics: %w", err)
	}

	provider, err := OpenProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("[Bootstrap] %w", err)
	}
	g, err := assemble(ctx, cfg, file, provider, metricsHandler)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("[Bootstrap] %w", err)
	}
	return g, nil
}

func assemble(ctx context.Context, cfg config.Config, file *config.File, provider *token.Provider,
	metricsHandler http.Handler) (*Gateway, error) {
	validator, err := newValidator(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}

	clientList, err := clients.FromConfig(file.Clients)
	if err != nil {
		return nil, err
	}

	hub, err := home.NewMemory(file.Devices)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		Provider:   provider,
		Consent:    consent.NewStore(),
		Board:      consentui.NewBoard(),
		Hub:        hub,
		AdminToken: adminToken(cfg),
	}

	g.Server, err = New(cfg, Deps{
		Tokens:     provider,
		Clients:    memrepo.New(clientList...),
		Board:      g.Board,
		AdminToken: g.AdminToken,
		Metrics:    metricsHandler,
	})
	if err != nil {
		return nil, err
	}

	deps := auth.Deps{
		Validator:       validator,
		Installer:       provider,
		Extender:        token.NewLifetimeExtender(cfg.GetDefaultAccessTokenExpiry(), cfg.GetExtendedAccessTokenExpiry()),
		Consent:         g.Consent,
		UI:              g.Board,
		ValidateTimeout: cfg.GetValidateTimeout(),
	}

	paths := make(map[string]string, len(file.Bots))
	for _, b := range file.Bots {
		kind, err := bot.ParsePlatform(b.Platform)
		if err != nil {
			return nil, err
		}
		key := bot.PathKey(kind, b.Name)
		if other, dup := paths[key]; dup {
			return nil, fmt.Errorf("%w: bots %q and %q both serve /%s", zerrors.ErrInvalidConfig, other, b.Name, key)
		}
		paths[key] = b.Name

		handler, err := platforms.NewHandler(kind, hub)
		if err != nil {
			return nil, err
		}
		ep, err := bot.New(ctx, kind, g.Server.BotRouter(), b, handler, bot.Options{
			Folder: cfg.GetDataFolder(),
			Auth:   deps,
		})
		if err != nil {
			return nil, err
		}
		g.Endpoints = append(g.Endpoints, ep)
	}

	log.Info().Int("endpoints", len(g.Endpoints)).Str("folder", cfg.GetDataFolder()).Msg("server: gateway ready")
	return g, nil
}

// Close releases the token store.
func (g *Gateway) Close() error {
	return g.Provider.Close()
}

// OpenProvider opens the refresh token store selected by TOKEN_DB and builds the identity
// provider with the configured signing secret.
func OpenProvider(cfg config.Config) (*token.Provider, error) {
	repo, err := openRefreshRepo(cfg)
	if err != nil {
		return nil, err
	}

	secret := cfg.GetTokenSecret()
	if secret == "" {
		var created bool
		secret, created, err = token.LoadOrCreateSecret(cfg.GetDataFolder())
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		if created {
			log.Warn().Str("folder", cfg.GetDataFolder()).Msg("server: generated a new token signing secret")
		}
	}

	provider, err := token.New(repo, token.NewHMACSigner(secret),
		token.WithIssuer(cfg.GetAppName()),
		token.WithDefaultExpiration(cfg.GetDefaultAccessTokenExpiry()),
		token.WithTokenLength(cfg.GetRefreshTokenLength()),
	)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return provider, nil
}

// NeedsLifetimeExtender reports whether any configured bot is guarded by the OAuth bridge, which
// installs the lifetime extender on the process provider.
func NeedsLifetimeExtender(bots []config.BotConfig) bool {
	for _, b := range bots {
		if b.Token != "" || b.HasLongLivedToken() {
			continue
		}
		kind, err := bot.ParsePlatform(b.Platform)
		if err != nil {
			continue
		}
		handler, err := platforms.NewHandler(kind, nil)
		if err == nil && handler.OAuthCapable() {
			return true
		}
	}
	return false
}

func openRefreshRepo(cfg config.Config) (refresh.Repo, error) {
	dbPath := cfg.GetTokenDB()
	if dbPath == config.TokenDBMemory {
		log.Warn().Msg("server: refresh tokens are kept in memory and will not survive a restart")
		return refreshmem.New(), nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create token db folder: %w", err)
	}
	repo, err := sqliterepo.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func newValidator(ctx context.Context, cfg config.Config, provider *token.Provider) (token.Validator, error) {
	issuer := cfg.GetOIDCIssuer()
	if issuer == "" {
		return provider, nil
	}
	v, err := token.NewOIDCValidator(ctx, issuer, cfg.GetOIDCClientID())
	if err != nil {
		return nil, err
	}
	log.Info().Str("issuer", issuer).Msg("server: validating access tokens against a remote issuer")
	return v, nil
}

// adminToken returns ADMIN_TOKEN, or a generated one that is logged once.
func adminToken(cfg config.EnvConfig) string {
	if t := cfg.GetAdminToken(); t != "" {
		return t
	}
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	generated := hex.EncodeToString(b)
	log.Warn().
		Str("admin_token", generated).
		Msg("server: ADMIN_TOKEN not set, generated one for the consent routes. SAVE THIS TOKEN, it will not be displayed again")
	return generated
}
