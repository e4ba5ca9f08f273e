// Package clients holds the OAuth clients allowed to exchange and revoke gateway tokens: the
// voice platforms' account-linking backends and any local tooling.
package clients

import (
	"fmt"
	"strings"

	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Authenticates with a secret
	ClientTypePublic       ClientType = "public"       // Voice platforms that only send their client id
)

type Client struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Icon       string `json:"icon,omitempty"`
	SecretHash string `json:"-"`
}

// Type returns the client type, derived from whether a secret is configured.
func (c *Client) Type() ClientType {
	if c.SecretHash == "" {
		return ClientTypePublic
	}
	return ClientTypeConfidential
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type() == ClientTypePublic
}

// CheckSecret compares secret against the stored bcrypt hash. Public clients accept any secret.
func (c *Client) CheckSecret(secret string) error {
	if c.IsPublic() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return zerrors.ErrInvalidClientSecret
	}
	return nil
}

// HashSecret returns the bcrypt hash to put in a client's secret_hash.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", zerrors.ErrInvalidRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("[HashSecret] %w", err)
	}
	return string(hash), nil
}

// FromConfig converts configured clients, rejecting empty and duplicate ids.
func FromConfig(cfgs []config.ClientConfig) ([]*Client, error) {
	seen := make(map[string]struct{}, len(cfgs))
	out := make([]*Client, 0, len(cfgs))
	for i, c := range cfgs {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: clients[%d] has no id", zerrors.ErrInvalidConfig, i)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: client %q already configured", zerrors.ErrInvalidConfig, id)
		}
		seen[id] = struct{}{}
		name := c.Name
		if name == "" {
			name = id
		}
		out = append(out, &Client{ID: id, Name: name, Icon: c.Icon, SecretHash: c.SecretHash})
	}
	return out, nil
}
