package handlers

import "net/http"

// RegisterRoutes mounts the JSON API on mux
func RegisterRoutes(mux *http.ServeMux, m *Middleware, auth *AuthHandler, training *TrainingHandler, health *HealthHandler) {
	mux.HandleFunc("GET /healthz", health.Healthz)

	// Authentication
	mux.HandleFunc("POST /api/auth/register", m.RateLimit(auth.Register))
	mux.HandleFunc("POST /api/auth/login", m.RateLimit(auth.Login))
	mux.HandleFunc("POST /api/auth/logout", m.RequireAuth(auth.Logout))
	mux.HandleFunc("GET /api/auth/me", m.RequireAuth(auth.Me))
	mux.HandleFunc("POST /api/auth/password-reset", m.RateLimit(auth.RequestPasswordReset))
	mux.HandleFunc("POST /api/auth/password-reset/confirm", m.RateLimit(auth.ConfirmPasswordReset))
	mux.HandleFunc("GET /api/auth/password-reset/{token}", m.RateLimit(auth.CheckPasswordResetToken))
	mux.HandleFunc("GET /api/auth/providers", auth.ListOAuthProviders)
	mux.HandleFunc("GET /auth/{provider}/start", auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", auth.OAuthCallback)

	// Training
	mux.HandleFunc("POST /api/training/words", m.RequireAuth(m.RateLimit(training.FetchWords)))
	mux.HandleFunc("POST /api/training/sessions", m.RequireAuth(training.SaveSession))
	mux.HandleFunc("GET /api/training/sessions", m.RequireAuth(training.ListSessions))
	mux.HandleFunc("GET /api/training/progress", m.RequireAuth(training.GetProgress))
	mux.HandleFunc("GET /api/training/exclusions/stats", m.RequireAuth(training.ExclusionStats))
	mux.HandleFunc("DELETE /api/training/exclusions", m.RequireAdmin(training.ClearExclusions))
}
