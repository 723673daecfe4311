package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arx-os/vecindex/internal/common/logger"
)

// AuthConfig configures the JWT bearer-token check, trimmed from the
// teacher's gateway AuthConfig (arx-backend/gateway/middleware/auth.go) down
// to what a single-tenant demo front needs: one secret, no OAuth2/API-key
// providers, no per-path role lists.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
	SkipPaths   []string
}

// Claims is this demo front's JWT payload, matching the teacher's JWTClaims
// shape (minus the roles/provider fields a single-tenant demo has no use
// for) updated for jwt/v5's jwt.RegisteredClaims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type userContextKey struct{}

// UserFromContext returns the authenticated UserID set by AuthMiddleware,
// if any.
func UserFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userContextKey{}).(string)
	return v, ok
}

// IssueToken mints a signed bearer token for userID, for callers scripting
// against the demo front, such as its tests.
func IssueToken(cfg AuthConfig, userID string) (string, error) {
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// AuthMiddleware validates the Authorization: Bearer <token> header per
// the teacher's extractToken/validateJWTToken pair, minus the
// X-Auth-Token/query-param/API-key/OAuth2 fallbacks this front doesn't
// expose.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	log := logger.With("component", "server.auth")
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := extractBearerToken(r)
			if err != nil {
				log.Warn("rejecting request: %v", err)
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				log.Warn("rejecting request: invalid token: %v", err)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("no Authorization header")
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", fmt.Errorf("Authorization header is not a bearer token")
	}
	return strings.TrimPrefix(auth, "Bearer "), nil
}
