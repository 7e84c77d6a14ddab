package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"gym-access-control/backend/internal/security"
)

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// authenticate verifies the bearer JWT and returns its claims. On failure it
// writes a 401 and returns ok=false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*security.DirectoryClaims, bool) {
	authz := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(authz, "Bearer ")
	if !found || raw == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	claims, err := s.tokens.Validate(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
		return nil, false
	}
	return claims, true
}
