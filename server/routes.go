package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealthz, s.Healthz())
	if s.metrics != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics)
	}

	// OAuth2 API routes
	s.RegisterRouteHandler("POST "+RouteAuthToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRevoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))

	// Consent prompts (require the admin bearer token)
	s.RegisterRouteHandler("GET "+RouteConsent, ChainMiddleware(s.ConsentList(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("POST "+RouteConsentComplete, ChainMiddleware(s.ConsentComplete(), s.APIMiddleware(s.RequireAdmin())...))

	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.APIMiddleware()...))
}
