package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS returns middleware allowing the dashboard origins. Origins come in
// as a comma-separated list.
func CORS(originList string) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000"}
	for _, origin := range strings.Split(originList, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
