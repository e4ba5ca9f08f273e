package oauth2

// TokenResponse is the token endpoint response body (RFC 6749 section 5.1).
type TokenResponse struct {
	// AccessToken is the signed JWT presented as "Authorization: Bearer <access_token>"
	// or inside a platform payload.
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. The authoritative value is the JWT exp claim.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is only returned when a grant is first issued. Refreshing does not rotate it.
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the token endpoint error body (RFC 6749 section 5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
