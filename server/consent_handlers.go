package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/inevity/zhibot/consentui"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/oauth2"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const maxConsentBodyBytes = 64 << 10

type consentListResponse struct {
	Prompts []consentui.Prompt `json:"prompts"`
}

// ConsentList returns the pending consent prompts, oldest first.
func (s *Server) ConsentList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(consentListResponse{Prompts: s.board.Pending()})
	}
}

// ConsentComplete answers the prompt named in the path. Field values come from a form or a flat
// JSON object.
func (s *Server) ConsentComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := r.PathValue("id")

		values, err := consentValues(r)
		if err != nil {
			writeJSONError(w, oauth2.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.board.Complete(handle, values); err != nil {
			switch {
			case errors.Is(err, zerrors.ErrNotFound):
				writeJSONError(w, "not_found", err.Error(), http.StatusNotFound)
			case errors.Is(err, zerrors.ErrInvalidRequest):
				writeJSONError(w, oauth2.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
			default:
				log.Error().Err(err).Str("prompt", handle).Msg("server: consent completion failed")
				writeJSONError(w, oauth2.ErrCodeServerError, "consent completion failed", http.StatusInternalServerError)
			}
			return
		}

		log.Info().Str("prompt", handle).Msg("server: consent prompt completed")
		w.WriteHeader(http.StatusNoContent)
	}
}

func consentValues(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("failed to parse form data")
		}
		values := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
		return values, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConsentBodyBytes))
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, errors.New("body must be a JSON object")
	}
	values := make(map[string]string)
	parsed.ForEach(func(key, value gjson.Result) bool {
		values[key.String()] = value.String()
		return true
	})
	return values, nil
}
