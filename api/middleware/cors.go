package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the admin UI origins to call the API with credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
