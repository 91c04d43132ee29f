package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redlantern/bookkeeper/internal/domain"
	"github.com/redlantern/bookkeeper/internal/infra/observability"
	"github.com/redlantern/bookkeeper/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionAuthMiddleware validates Bearer tokens and injects the resolved
// session into the request context. Every /v1 route except login runs behind
// it; per-operation authorization happens in the service layer.
func SessionAuthMiddleware(authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				metrics.IncrAuthFailure("unauthorized")
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				metrics.IncrAuthFailure("unauthorized")
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			sess, err := authSvc.ValidateToken(r.Context(), parts[1])
			if err != nil {
				// A store failure while resolving the session is not a
				// credential problem; let the error mapper pick the status.
				var unauthorized *domain.ErrUnauthorized
				if !errors.As(err, &unauthorized) {
					handleServiceError(w, err, logger)
					return
				}
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				metrics.IncrAuthFailure("unauthorized")
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the authenticated session from context.
func SessionFromContext(ctx context.Context) *domain.Session {
	v, _ := ctx.Value(sessionKey).(*domain.Session)
	return v
}
