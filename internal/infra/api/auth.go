package api

import (
	"fmt"
	"net/http"
	"strings"

	"ai-request-orchestrator/internal/infra/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// OwnerClaims carries the authenticated caller's identity in the subject.
type OwnerClaims struct {
	jwt.RegisteredClaims
}

// Auth validates "Authorization: Bearer <token>" (HMAC-SHA256) and stores the
// subject claim in the request context as the owner id. Dev mode accepts a
// plain X-Owner-ID header so local runs don't need to mint tokens.
func Auth(secret []byte, dev bool, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dev {
				if owner := r.Header.Get("X-Owner-ID"); owner != "" {
					ctx := logging.WithOwnerID(r.Context(), owner)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenParts := strings.SplitN(authHeader, " ", 2)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}

			claims := &OwnerClaims{}
			token, err := jwt.ParseWithClaims(tokenParts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rejected bearer token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := logging.WithOwnerID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
