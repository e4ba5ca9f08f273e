// Package memrepo is an in-memory refresh.Repo. Tokens do not survive a restart.
package memrepo

import (
	"context"
	"sort"
	"sync"

	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/token/refresh"
)

var _ refresh.Repo = (*Repo)(nil)

type Repo struct {
	tokens map[string]*refresh.StoredRefreshToken
	ids    map[string]string // refresh token ID to token string
	lock   sync.RWMutex
}

func New() *Repo {
	return &Repo{
		tokens: make(map[string]*refresh.StoredRefreshToken),
		ids:    make(map[string]string),
	}
}

func (r *Repo) Upsert(_ context.Context, refreshToken *refresh.StoredRefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored := *refreshToken
	r.tokens[stored.Token] = &stored
	r.ids[stored.ID] = stored.Token
	return nil
}

func (r *Repo) Delete(_ context.Context, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return zerrors.ErrNotFound
	}
	delete(r.ids, rt.ID)
	delete(r.tokens, token)
	return nil
}

func (r *Repo) Get(_ context.Context, token string) (*refresh.StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, zerrors.ErrNotFound
	}
	out := *rt
	return &out, nil
}

func (r *Repo) GetByID(_ context.Context, id string) (*refresh.StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	token, ok := r.ids[id]
	if !ok {
		return nil, zerrors.ErrNotFound
	}
	out := *r.tokens[token]
	return &out, nil
}

func (r *Repo) List(_ context.Context, offset, limit int) ([]*refresh.StoredRefreshToken, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	tokens := make([]*refresh.StoredRefreshToken, 0, len(r.tokens))
	for _, v := range r.tokens {
		out := *v
		tokens = append(tokens, &out)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
	})

	if offset >= len(tokens) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(tokens) {
		end = len(tokens)
	}
	return tokens[offset:end], nil
}

func (r *Repo) Close() error { return nil }
