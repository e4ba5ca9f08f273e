package clients

import (
	"context"
	"errors"
	"fmt"

	zerrors "github.com/inevity/zhibot/internal/errors"
)

type Repo interface {
	Upsert(ctx context.Context, clientData *Client) error
	Delete(ctx context.Context, clientID string) error
	Get(ctx context.Context, clientID string) (*Client, error)
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}

// Authenticate looks up clientID and checks its secret.
func Authenticate(ctx context.Context, repo Repo, clientID, secret string) (*Client, error) {
	if clientID == "" {
		return nil, zerrors.ErrInvalidClient
	}
	c, err := repo.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, zerrors.ErrNotFound) {
			return nil, zerrors.ErrInvalidClient
		}
		return nil, fmt.Errorf("lookup client: %w", err)
	}
	if err := c.CheckSecret(secret); err != nil {
		return nil, err
	}
	return c, nil
}
