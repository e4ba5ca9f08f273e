package refresh

import (
	"context"
	"time"
)

// TokenType distinguishes how a refresh token was obtained.
type TokenType string

const (
	TokenTypeNormal    TokenType = "normal"
	TokenTypeSystem    TokenType = "system"
	TokenTypeLongLived TokenType = "long_lived_access_token"
)

// StoredRefreshToken represents the server-side storage of refresh token metadata.
// The client only receives the Token field (a random string); access tokens reference ID.
type StoredRefreshToken struct {
	ID                    string        // Stable identifier embedded in access tokens (rtid claim)
	Token                 string        // The actual random token string (sent to client)
	UserID                string        // Subject the grant was issued to
	ClientID              string        // OAuth client that owns the grant
	ClientName            string        // Display name (long-lived tokens)
	ClientIcon            string        // Display icon (long-lived tokens)
	TokenType             TokenType     // normal, system or long_lived_access_token
	AccessTokenExpiration time.Duration // Lifetime of access tokens minted from this grant
	CredentialID          string        // Credential used to obtain the grant, if any
	CreatedAt             time.Time
	LastUsedAt            time.Time
}

// ExpiresAt is the expiry of an access token minted from this grant at the given instant.
func (t *StoredRefreshToken) ExpiresAt(issuedAt time.Time) time.Time {
	return issuedAt.Add(t.AccessTokenExpiration)
}

// Repo manages server-side storage of refresh token metadata.
type Repo interface {
	Upsert(ctx context.Context, refreshToken *StoredRefreshToken) error
	Delete(ctx context.Context, token string) error
	Get(ctx context.Context, token string) (*StoredRefreshToken, error)
	GetByID(ctx context.Context, id string) (*StoredRefreshToken, error)
	List(ctx context.Context, offset, limit int) ([]*StoredRefreshToken, error)
	Close() error
}
