package token

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// RevokedTokenCache tracks individually revoked access tokens by jti until they would have
// expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
}

type memoryRevokedTokenCache struct {
	revoked *cache.Cache
	nowFunc func() time.Time
}

// NewRevokedTokenCache returns a RevokedTokenCache whose entries are swept every cleanup interval.
func NewRevokedTokenCache(cleanup time.Duration) RevokedTokenCache {
	return &memoryRevokedTokenCache{
		revoked: cache.New(cache.NoExpiration, cleanup),
		nowFunc: time.Now,
	}
}

func (c *memoryRevokedTokenCache) Add(jti string, exp time.Time) {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		return
	}
	c.revoked.Set(jti, struct{}{}, ttl)
}

func (c *memoryRevokedTokenCache) IsRevoked(jti string) bool {
	_, ok := c.revoked.Get(jti)
	return ok
}
