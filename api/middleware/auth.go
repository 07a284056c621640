package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/vouchernet-backend/api/responses"
	pkgAuth "github.com/angelmondragon/vouchernet-backend/pkg/auth"
	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vouchernet-backend/pkg/errors"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// caller's node id and role.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), claims.NodeID, claims.Role)
			if logg != nil {
				ctx = logg.WithActor(ctx, claims.NodeID.String(), string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
