package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// OpenCORS allows any origin. The marketplace update endpoint is consumed
// by the desktop POS shell, which runs from a file:// origin.
func OpenCORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	}).Handler
}
