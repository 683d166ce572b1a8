package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/nexchain-labs/asset-gateway/pkg/app/errors"
	apphttp "github.com/nexchain-labs/asset-gateway/pkg/app/http"
)

// Middleware returns a chi-compatible middleware that enforces bearer-JWT
// authentication through the validator. An unconfigured validator passes
// requests through so local development works without an identity provider.
func Middleware(v *JWTValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || !v.IsConfigured() {
				logger.Debug("JWT validation skipped (development mode)",
					zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "missing bearer token"))
				return
			}

			claims, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				logger.Warn("Rejected request with invalid token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
				return
			}

			subject, _ := claims.GetSubject()
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
