package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that applies the API's allowed origin policy.
// Browser clients only talk to the engine from the app and staging hosts;
// localhost is kept for local development.
func CORS() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"https://app.fundi.africa",
			"https://staging.fundi.africa",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	return cors.New(opts).Handler
}
