package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
)

// WildcardToken accepts every caller.
const WildcardToken = "*"

// StaticToken authorizes callers presenting a shared secret in the "token" query parameter or the
// "token" header.
type StaticToken struct {
	secret string
}

var _ Strategy = (*StaticToken)(nil)

func NewStaticToken(secret string) *StaticToken {
	return &StaticToken{secret: secret}
}

func (s *StaticToken) Name() string { return NameStaticToken }

func (s *StaticToken) Check(_ context.Context, r *http.Request, _ []byte) bool {
	if s.secret == "" {
		return false
	}
	if s.secret == WildcardToken {
		return true
	}
	if r == nil {
		return false
	}
	if r.URL != nil && equal(s.secret, r.URL.Query().Get("token")) {
		return true
	}
	return equal(s.secret, r.Header.Get("token"))
}

func equal(secret, presented string) bool {
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) == 1
}
