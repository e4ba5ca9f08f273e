// Package bot serves one webhook per configured bot: it parses the platform callback, runs the
// bot's auth strategy, dispatches authorized payloads to the platform handler, and always answers
// with a well-formed platform envelope.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/inevity/zhibot/auth"
	"github.com/inevity/zhibot/consent"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// MaxBodyBytes caps an inbound payload.
const MaxBodyBytes = 1 << 20

// Router is the host HTTP router. Endpoints register themselves at construction.
type Router interface {
	RegisterRouteHandler(pattern string, handler http.Handler)
}

// Options carry what an endpoint needs beyond its own configuration.
type Options struct {
	// Folder holds consent files.
	Folder string
	Auth   auth.Deps
}

// Endpoint is one bot webhook. Its identity (path, kind, name) is fixed at construction.
type Endpoint struct {
	path     string
	kind     Platform
	name     string
	strategy auth.Strategy
	handler  Handler
}

var _ http.Handler = (*Endpoint)(nil)

// New builds the endpoint for cfg and registers it on host.
func New(ctx context.Context, kind Platform, host Router, cfg config.BotConfig, handler Handler,
	opts Options) (*Endpoint, error) {
	if host == nil {
		return nil, fmt.Errorf("[bot New] %w: router is required", zerrors.ErrInvalidConfig)
	}
	if handler == nil {
		return nil, fmt.Errorf("[bot New] %w: handler is required", zerrors.ErrInvalidConfig)
	}

	key := PathKey(kind, cfg.Name)
	e := &Endpoint{
		path:    "/" + key,
		kind:    kind,
		name:    displayName(kind, cfg.Name),
		handler: handler,
	}

	strategy, err := auth.Select(ctx, cfg, auth.Target{
		Name:         key,
		StoragePath:  consent.StoragePath(opts.Folder, key),
		Reader:       handler,
		OAuthCapable: handler.OAuthCapable(),
	}, opts.Auth)
	if err != nil {
		return nil, fmt.Errorf("[bot New] %s: %w", e.path, err)
	}
	e.strategy = strategy

	host.RegisterRouteHandler(http.MethodPost+" "+e.path, e)

	serving := "Serving on " + e.path
	if cfg.Token != "" {
		serving += "?token=" + maskToken(cfg.Token)
	}
	log.Info().Str("platform", kind.String()).Str("name", e.name).Str("auth", strategy.Name()).Msg("bot: " + serving)
	return e, nil
}

// PathKey is the endpoint's path segment: the slug of its name, or the platform when the name is
// absent or slugs to nothing.
func PathKey(kind Platform, name string) string {
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return kind.String()
}

func displayName(kind Platform, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return kind.String()
}

func maskToken(tok string) string {
	if tok == auth.WildcardToken || len(tok) <= 2 {
		return tok
	}
	return tok[:2] + strings.Repeat("*", len(tok)-2)
}

func (e *Endpoint) Path() string { return e.path }
func (e *Endpoint) Kind() Platform { return e.kind }
func (e *Endpoint) Name() string { return e.name }
func (e *Endpoint) Strategy() auth.Strategy { return e.strategy }

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error().Err(err).Str("path", e.path).Msg("bot: read body failed")
		body = nil
	}

	resp := e.HandlePost(r.Context(), r, body)

	out, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("path", e.path).Msg("bot: encode response failed")
		out, _ = json.Marshal(e.failSafely(body, zerrors.ErrInternal.Error()))
		if out == nil {
			out = fallbackFailure
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// HandlePost runs one callback through parse, authenticate, handle, and translate. It always
// returns a response body; panics in the strategy or handler become service errors.
func (e *Endpoint) HandlePost(ctx context.Context, r *http.Request, body []byte) (resp any) {
	outcome := metrics.OutcomeServiceError
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("path", e.path).Interface("panic", rec).Str("stack", string(debug.Stack())).
				Msg("bot: request panicked")
			outcome = metrics.OutcomeServiceError
			resp = e.failSafely(body, fmt.Sprint(rec))
		}
		metrics.RecordRequest(e.path, outcome)
		log.Debug().Str("path", e.path).Interface("response", resp).Msg("bot: RESPONSE")
	}()

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		err := zerrors.Wrapf(zerrors.ErrMalformedPayload, "%s", e.path)
		log.Error().Err(err).Bytes("body", truncate(body)).Msg("bot: malformed payload")
		return e.handler.Fail(body, FailureServiceError, err.Error())
	}
	log.Info().Str("path", e.path).RawJSON("payload", body).Msg("bot: REQUEST")

	if !e.strategy.Check(ctx, r, body) {
		outcome = metrics.OutcomeDenied
		log.Info().Str("path", e.path).Str("auth", e.strategy.Name()).Msg("bot: " + zerrors.ErrUnauthorized.Error())
		return e.handler.Fail(body, FailureDenied, DeniedMessage)
	}

	result, err := e.handler.Handle(ctx, body)
	if err != nil {
		err = fmt.Errorf("%w: %v", zerrors.ErrHandlerFailure, err)
		log.Error().Err(err).Str("path", e.path).Msg("bot: handler failed")
		return e.handler.Fail(body, FailureServiceError, err.Error())
	}
	outcome = metrics.OutcomeAuthorized
	return e.handler.Respond(body, result)
}

// fallbackFailure answers when the platform handler cannot build its own error envelope.
var fallbackFailure = []byte(`{"error":"service_error"}`)

// failSafely builds a service error envelope, falling back to fallbackFailure if Fail panics.
func (e *Endpoint) failSafely(body []byte, message string) (resp any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("path", e.path).Interface("panic", rec).Msg("bot: failure envelope panicked")
			resp = json.RawMessage(fallbackFailure)
		}
	}()
	return e.handler.Fail(body, FailureServiceError, message)
}

func truncate(b []byte) []byte {
	const max = 512
	if len(b) > max {
		return b[:max]
	}
	return b
}
