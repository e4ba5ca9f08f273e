package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/inevity/zhibot/bot"
	"github.com/inevity/zhibot/clients"
	"github.com/inevity/zhibot/consentui"
	"github.com/inevity/zhibot/internal/config"
	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/oauth2"
	"github.com/rs/zerolog/log"
)

// TokenService is the part of the identity provider exposed over HTTP.
type TokenService interface {
	Refresh(ctx context.Context, refreshToken, clientID string) (*oauth2.TokenResponse, error)
	Revoke(ctx context.Context, rawToken string) error
}

// Deps are the collaborators behind the host's own routes.
type Deps struct {
	Tokens     TokenService
	Clients    clients.Repo
	Board      *consentui.Board
	AdminToken string
	Metrics    http.Handler // serves /metrics when set
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	tokens     TokenService
	clients    clients.Repo
	board      *consentui.Board
	adminToken string
	metrics    http.Handler
}

func New(cfg config.EnvConfig, deps Deps) (*Server, error) {
	if deps.Tokens == nil {
		return nil, fmt.Errorf("[Server New] %w: token service is required", zerrors.ErrInvalidConfig)
	}
	if deps.Clients == nil {
		return nil, fmt.Errorf("[Server New] %w: client repo is required", zerrors.ErrInvalidConfig)
	}
	if deps.Board == nil {
		return nil, fmt.Errorf("[Server New] %w: consent board is required", zerrors.ErrInvalidConfig)
	}
	if deps.AdminToken == "" {
		return nil, fmt.Errorf("[Server New] %w: admin token is required", zerrors.ErrInvalidConfig)
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		tokens:     deps.Tokens,
		clients:    deps.Clients,
		board:      deps.Board,
		adminToken: deps.AdminToken,
		metrics:    deps.Metrics,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// BotRouter returns the router bot endpoints register on. Their handlers get the API middleware.
func (s *Server) BotRouter() bot.Router {
	return botRouter{s: s}
}

type botRouter struct {
	s *Server
}

func (b botRouter) RegisterRouteHandler(pattern string, handler http.Handler) {
	b.s.RegisterRouteHandler(pattern, ChainMiddleware(handler.ServeHTTP, b.s.APIMiddleware()...))
	b.s.logRoute(pattern)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		s.logRoute(route)
	}
}

func (s *Server) logRoute(route string) {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	method, path, ok := strings.Cut(route, " ")
	if !ok {
		method, path = "", route
	}
	log.Debug().Str("method", method).Str("path", path).Msg("server: route")
}
