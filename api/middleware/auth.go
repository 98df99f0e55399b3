package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookhaven/bookhaven-backend/api/responses"
	pkgauth "github.com/bookhaven/bookhaven-backend/pkg/auth"
	"github.com/bookhaven/bookhaven-backend/pkg/auth/session"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// Auth validates the bearer token, checks the session is still live in
// Redis, and seeds the request context with the caller's identity.
func Auth(jwtCfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := bearerToken(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			claims, err := pkgauth.ParseAccessToken(jwtCfg, token)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if strings.TrimSpace(claims.ID) == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token"))
				return
			}

			// A valid signature is not enough; logout must take effect
			// before the token expires.
			active, err := sessions.HasSession(ctx, claims.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking session"))
				return
			}
			if !active {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired"))
				return
			}

			ctx = context.WithValue(ctx, ctxUserID, claims.UserID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			ctx = context.WithValue(ctx, ctxAccessID, claims.ID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header required")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header must be a bearer token")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header must be a bearer token")
	}
	return token, nil
}
