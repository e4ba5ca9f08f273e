// Package token is the gateway's identity provider: it issues refresh tokens, mints and validates
// JWT access tokens, and exposes an issuance pipeline that middlewares (such as the lifetime
// extender) can wrap.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/oauth2"
	"github.com/inevity/zhibot/token/refresh"
)

// DefaultAccessTokenExpiration is the documented lifetime of access tokens minted from a grant
// that did not ask for anything else.
const DefaultAccessTokenExpiration = 30 * time.Minute

// GrantRequest describes a refresh token grant. A zero AccessTokenExpiration means the provider
// default.
type GrantRequest struct {
	Subject               string
	ClientID              string
	ClientName            string
	ClientIcon            string
	TokenType             refresh.TokenType
	AccessTokenExpiration time.Duration
	CredentialID          string
}

// IssueFunc issues a refresh token grant.
type IssueFunc func(ctx context.Context, req GrantRequest) (*refresh.StoredRefreshToken, error)

// Middleware decorates the issuance pipeline. Name identifies the middleware so that installing
// the same one twice is a no-op.
type Middleware interface {
	Name() string
	Wrap(next IssueFunc) IssueFunc
}

// Introspection is the result of validating an access token.
type Introspection struct {
	Active         bool
	Subject        string
	ClientID       string
	RefreshTokenID string
	ExpiresAt      time.Time
}

// Validator validates access tokens presented by bot platforms.
type Validator interface {
	ValidateAccessToken(ctx context.Context, rawToken string) (*Introspection, error)
}

// Issuer issues refresh token grants.
type Issuer interface {
	IssueRefreshToken(ctx context.Context, req GrantRequest) (*refresh.StoredRefreshToken, error)
}

var (
	_ Validator = (*Provider)(nil)
	_ Issuer    = (*Provider)(nil)
)

type Provider struct {
	repo              refresh.Repo
	signer            Signer
	issuer            string
	defaultExpiration time.Duration
	tokenLength       int
	nowFunc           func() time.Time
	revoked           RevokedTokenCache

	mu        sync.RWMutex
	issue     IssueFunc
	installed map[string]struct{}
	pending   []Middleware
}

type ProviderOption func(*Provider)

func WithIssuer(issuer string) ProviderOption {
	return func(p *Provider) {
		p.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

// WithDefaultExpiration overrides DefaultAccessTokenExpiration.
func WithDefaultExpiration(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.defaultExpiration = d
	}
}

func WithTokenLength(n int) ProviderOption {
	return func(p *Provider) {
		p.tokenLength = n
	}
}

// WithRevokedTokenCache replaces the in-memory cache of individually revoked access tokens.
func WithRevokedTokenCache(c RevokedTokenCache) ProviderOption {
	return func(p *Provider) {
		p.revoked = c
	}
}

// WithMiddleware installs issuance middlewares at construction time.
func WithMiddleware(mw ...Middleware) ProviderOption {
	return func(p *Provider) {
		p.pending = append(p.pending, mw...)
	}
}

func New(repo refresh.Repo, signer Signer, options ...ProviderOption) (*Provider, error) {
	if repo == nil {
		return nil, errors.New("[token New] refresh token repo is required")
	}
	if signer == nil {
		return nil, errors.New("[token New] signer is required")
	}

	p := &Provider{
		repo:      repo,
		signer:    signer,
		issuer:    "zhibot",
		installed: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(p)
	}

	if p.defaultExpiration == 0 {
		p.defaultExpiration = DefaultAccessTokenExpiration
	}
	if p.tokenLength == 0 {
		p.tokenLength = 32
	}
	if p.nowFunc == nil {
		p.nowFunc = time.Now
	}
	if p.revoked == nil {
		p.revoked = NewRevokedTokenCache(10 * time.Minute)
	}

	p.issue = p.issueRefreshToken
	for _, mw := range p.pending {
		p.Install(mw)
	}
	p.pending = nil
	return p, nil
}

// DefaultExpiration returns the access token lifetime used for grants that do not ask for one.
func (p *Provider) DefaultExpiration() time.Duration {
	return p.defaultExpiration
}

// Install wraps the issuance pipeline with mw. It reports false, and changes nothing, when a
// middleware with the same name is already installed.
func (p *Provider) Install(mw Middleware) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.installed[mw.Name()]; ok {
		return false
	}
	p.issue = mw.Wrap(p.issue)
	p.installed[mw.Name()] = struct{}{}
	return true
}

// Installed reports whether a middleware with the given name wraps the pipeline.
func (p *Provider) Installed(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.installed[name]
	return ok
}

// IssueRefreshToken runs req through the installed middlewares and stores the resulting grant.
func (p *Provider) IssueRefreshToken(ctx context.Context, req GrantRequest) (*refresh.StoredRefreshToken, error) {
	p.mu.RLock()
	issue := p.issue
	p.mu.RUnlock()
	return issue(ctx, req)
}

func (p *Provider) issueRefreshToken(ctx context.Context, req GrantRequest) (*refresh.StoredRefreshToken, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", zerrors.ErrInvalidRequest)
	}
	if req.TokenType == "" {
		req.TokenType = refresh.TokenTypeNormal
	}
	switch req.TokenType {
	case refresh.TokenTypeNormal:
		if req.ClientID == "" {
			return nil, fmt.Errorf("%w: client id is required for normal tokens", zerrors.ErrInvalidRequest)
		}
	case refresh.TokenTypeLongLived:
		if req.ClientName == "" {
			return nil, fmt.Errorf("%w: client name is required for long-lived tokens", zerrors.ErrInvalidRequest)
		}
	case refresh.TokenTypeSystem:
	default:
		return nil, fmt.Errorf("%w: unknown token type %q", zerrors.ErrInvalidRequest, req.TokenType)
	}

	expiration := req.AccessTokenExpiration
	if expiration == 0 {
		expiration = p.defaultExpiration
	}

	tokenBytes := make([]byte, p.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rt := &refresh.StoredRefreshToken{
		ID:                    uuid.New().String(),
		Token:                 hex.EncodeToString(tokenBytes),
		UserID:                req.Subject,
		ClientID:              req.ClientID,
		ClientName:            req.ClientName,
		ClientIcon:            req.ClientIcon,
		TokenType:             req.TokenType,
		AccessTokenExpiration: expiration,
		CredentialID:          req.CredentialID,
		CreatedAt:             p.nowFunc(),
	}
	if err := p.repo.Upsert(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return rt, nil
}

// CreateAccessToken mints a JWT access token bound to rt and records the use.
func (p *Provider) CreateAccessToken(ctx context.Context, rt *refresh.StoredRefreshToken) (string, error) {
	now := p.nowFunc()
	claims := jwt.MapClaims{
		"iss":       p.issuer,
		"sub":       rt.UserID,
		"client_id": rt.ClientID,
		"rtid":      rt.ID,
		"iat":       now.Unix(),
		"exp":       rt.ExpiresAt(now).Unix(),
		"jti":       uuid.New().String(),
	}
	signed, err := p.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	rt.LastUsedAt = now
	if err := p.repo.Upsert(ctx, rt); err != nil {
		return "", fmt.Errorf("failed to record refresh token use: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken checks signature, issuer, expiry, and that the grant the token was minted
// from still exists.
func (p *Provider) ValidateAccessToken(ctx context.Context, rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, zerrors.ErrInvalidToken
	}

	claims, err := p.parse(rawToken)
	if err != nil {
		return &Introspection{Active: false}, err
	}
	if jti, _ := claims["jti"].(string); jti != "" && p.revoked.IsRevoked(jti) {
		return &Introspection{Active: false}, fmt.Errorf("%w: token revoked", zerrors.ErrInvalidToken)
	}
	rtid, _ := claims["rtid"].(string)
	if rtid == "" {
		return &Introspection{Active: false}, fmt.Errorf("%w: missing rtid claim", zerrors.ErrInvalidToken)
	}

	rt, err := p.repo.GetByID(ctx, rtid)
	if err != nil {
		if errors.Is(err, zerrors.ErrNotFound) {
			return &Introspection{Active: false}, fmt.Errorf("%w: grant revoked", zerrors.ErrInvalidToken)
		}
		return &Introspection{Active: false}, fmt.Errorf("lookup refresh token: %w", err)
	}

	in := &Introspection{
		Active:         true,
		Subject:        rt.UserID,
		ClientID:       rt.ClientID,
		RefreshTokenID: rt.ID,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		in.ExpiresAt = exp.Time
	}
	return in, nil
}

func (p *Provider) parse(rawToken string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, p.signer.GetVerificationKey,
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowFunc),
		jwt.WithValidMethods([]string{p.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, zerrors.Wrapf(zerrors.ErrTokenExpired, "validate access token")
		}
		return nil, fmt.Errorf("%w: %v", zerrors.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, zerrors.ErrInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token must belong to
// clientID.
func (p *Provider) Refresh(ctx context.Context, refreshToken, clientID string) (*oauth2.TokenResponse, error) {
	rt, err := p.repo.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, zerrors.ErrNotFound) {
			return nil, zerrors.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if rt.ClientID != clientID {
		return nil, zerrors.ErrInvalidClient
	}

	accessToken, err := p.CreateAccessToken(ctx, rt)
	if err != nil {
		return nil, err
	}
	return &oauth2.TokenResponse{
		AccessToken: &accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(rt.AccessTokenExpiration.Seconds()),
	}, nil
}

// Revoke revokes a token the way RFC 7009 describes. A refresh token is deleted, killing every
// access token minted from it. A valid access token is revoked on its own until it expires.
// Unknown tokens are not an error.
func (p *Provider) Revoke(ctx context.Context, rawToken string) error {
	if claims, err := p.parse(rawToken); err == nil {
		jti, _ := claims["jti"].(string)
		exp, _ := claims.GetExpirationTime()
		if jti != "" && exp != nil {
			p.revoked.Add(jti, exp.Time)
		}
		return nil
	}

	if err := p.repo.Delete(ctx, rawToken); err != nil && !errors.Is(err, zerrors.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// IsAccessToken reports whether rawToken is an access token signed by this provider, expired or not.
func (p *Provider) IsAccessToken(rawToken string) bool {
	_, err := p.parse(rawToken)
	return err == nil || errors.Is(err, zerrors.ErrTokenExpired)
}

// Close releases the token store.
func (p *Provider) Close() error {
	return p.repo.Close()
}
