package config

import "time"

type OAuthConfig interface {
	GetRefreshTokenLength() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetExtendedAccessTokenExpiry() time.Duration
	GetLongLivedTokenExpiry() time.Duration
	GetValidateTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 30 * time.Minute
}

// GetExtendedAccessTokenExpiry is the lifetime given to default-expiry grants once an OAuth bot
// endpoint is registered.
func (OAuth) GetExtendedAccessTokenExpiry() time.Duration {
	return 365 * 24 * time.Hour
}

func (OAuth) GetLongLivedTokenExpiry() time.Duration {
	return 3650 * 24 * time.Hour
}

func (OAuth) GetValidateTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv("VALIDATE_TIMEOUT", "5s"))
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
