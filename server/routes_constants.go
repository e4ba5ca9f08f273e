package server

const (
	// OAuth2 routes
	RouteAuthToken  = "/auth/token"
	RouteAuthRevoke = "/auth/revoke"

	// Consent prompts
	RouteConsent         = "/consent"
	RouteConsentComplete = "/consent/{id}"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"
)
