package middleware

import (
	"net/http"
	"strings"

	"github.com/iskolarlink/iskolarlink-backend/api/responses"
	pkgAuth "github.com/iskolarlink/iskolarlink-backend/pkg/auth"
	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
	pkgerrors "github.com/iskolarlink/iskolarlink-backend/pkg/errors"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
)

// Auth validates a bearer token minted by the portal's auth service and seeds
// the request context with the caller's id and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			ctx = WithRole(ctx, string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
