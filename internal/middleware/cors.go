package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"printer-fieldops/internal/auth"
)

func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{
			"Authorization",
			"Content-Type",
			requestIDHeader,
			auth.HeaderTimestamp,
			auth.HeaderSignature,
			auth.HeaderDeviceID,
		},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}
