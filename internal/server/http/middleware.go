package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/observability"
)

// principalMiddleware resolves the request principal from the Authorization
// header and attaches a RequestContext for downstream handlers.
//
// A missing header yields the anonymous principal; a present but invalid
// bearer token is rejected with 401 rather than silently downgraded, so a
// client with an expired session learns about it instead of seeing a
// mysteriously filtered listing.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := domain.Anonymous()

		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := bearerToken(header)
			if !ok {
				writeError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			var err error
			principal, err = s.verifier.Verify(token)
			if err != nil {
				s.logger.Debug().Err(err).Msg("rejected bearer token")
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
		}

		rc := observability.RequestContext{
			RequestID: middleware.GetReqID(r.Context()),
			Principal: principal,
			StartedAt: time.Now(),
		}
		next.ServeHTTP(w, r.WithContext(observability.WithRequestContext(r.Context(), rc)))
	})
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// requireAuth rejects requests without an authenticated principal.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !observability.PrincipalFrom(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			rc := observability.RequestContextFrom(r.Context())
			s.logger.Info().
				Str("request_id", rc.RequestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("role", string(rc.Principal.Role)).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		}()

		next.ServeHTTP(ww, r)
	})
}
