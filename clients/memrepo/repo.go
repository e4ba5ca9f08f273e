// Package memrepo is an in-memory clients.Repo, seeded from the configuration file at startup.
package memrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/inevity/zhibot/clients"
	zerrors "github.com/inevity/zhibot/internal/errors"
)

var _ clients.Repo = (*Repo)(nil)

type Repo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func New(seed ...*clients.Client) *Repo {
	r := &Repo{clients: make(map[string]*clients.Client, len(seed))}
	for _, c := range seed {
		stored := *c
		r.clients[c.ID] = &stored
	}
	return r
}

func (r *Repo) Upsert(_ context.Context, clientData *clients.Client) error {
	if clientData.ID == "" {
		return zerrors.ErrInvalidRequest
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	stored := *clientData
	r.clients[stored.ID] = &stored
	return nil
}

func (r *Repo) Delete(_ context.Context, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.clients[clientID]; !ok {
		return zerrors.ErrNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *Repo) Get(_ context.Context, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil, zerrors.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r *Repo) List(_ context.Context, offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		out := *v
		list = append(list, &out)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}
