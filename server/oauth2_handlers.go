package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inevity/zhibot/clients"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/oauth2"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
)

// Token exchanges a refresh token for a new access token.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse token request from form data
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrCodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		if oauth2.GrantType(r.FormValue("grant_type")) != oauth2.RefreshTokenGrant {
			writeJSONError(w, oauth2.ErrCodeUnsupportedGrantType, "only refresh_token is supported", http.StatusBadRequest)
			return
		}

		refreshToken := r.FormValue("refresh_token")
		if refreshToken == "" {
			writeJSONError(w, oauth2.ErrCodeInvalidRequest, "refresh_token parameter is required", http.StatusBadRequest)
			return
		}

		clientID, ok := s.authenticateClient(w, r)
		if !ok {
			return
		}

		tokenResponse, err := s.tokens.Refresh(r.Context(), refreshToken, clientID)
		if err != nil {
			if errors.Is(err, zerrors.ErrInvalidRefreshToken) || errors.Is(err, zerrors.ErrInvalidClient) {
				writeJSONError(w, oauth2.ErrCodeInvalidGrant, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Str("client_id", clientID).Msg("server: token refresh failed")
			writeJSONError(w, oauth2.ErrCodeServerError, "token refresh failed", http.StatusInternalServerError)
			return
		}

		// Return token response
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// Revoke revokes a refresh or access token. Unknown tokens still get 204.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Parse form data
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauth2.ErrCodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		token := r.FormValue("token")
		if token == "" {
			writeJSONError(w, oauth2.ErrCodeInvalidRequest, "token parameter is required", http.StatusBadRequest)
			return
		}

		if _, ok := s.authenticateClient(w, r); !ok {
			return
		}

		if err := s.tokens.Revoke(r.Context(), token); err != nil {
			log.Error().Err(err).Msg("server: token revocation failed")
			writeJSONError(w, oauth2.ErrCodeServerError, "token revocation failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// authenticateClient checks client_secret_post or client_secret_basic credentials. It writes the
// error response itself and reports whether the request may continue.
func (s *Server) authenticateClient(w http.ResponseWriter, r *http.Request) (string, bool) {
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")
	if id, secret, ok := r.BasicAuth(); ok && clientID == "" {
		clientID, clientSecret = id, secret
	}

	if _, err := clients.Authenticate(r.Context(), s.clients, clientID, clientSecret); err != nil {
		if errors.Is(err, zerrors.ErrInvalidClient) || errors.Is(err, zerrors.ErrInvalidClientSecret) {
			writeJSONError(w, oauth2.ErrCodeInvalidClient, "client authentication failed", http.StatusUnauthorized)
			return "", false
		}
		log.Error().Err(err).Str("client_id", clientID).Msg("server: client lookup failed")
		writeJSONError(w, oauth2.ErrCodeServerError, "client lookup failed", http.StatusInternalServerError)
		return "", false
	}
	return clientID, true
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
