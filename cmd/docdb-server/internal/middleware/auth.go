package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nullstore/docdb/cmd/docdb-server/internal/api"
	"github.com/nullstore/docdb/cmd/docdb-server/internal/clientctx"
)

// AuthMiddleware validates an X-API-Key header, a bearer API key, or a
// bearer JWT signed with jwtSecret. A JWT's "sub" claim becomes the
// request's client identity (used by the execution registry's
// per-client caps); otherwise the identity is the X-API-Key header value
// when present, else the remote address.
func AuthMiddleware(apiKey, jwtSecret string, disabled bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get("X-API-Key"); key != "" && apiKey != "" && key == apiKey {
				next.ServeHTTP(w, r)
				return
			}

			if auth := r.Header.Get("Authorization"); auth != "" {
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if apiKey != "" && token == apiKey {
						next.ServeHTTP(w, r)
						return
					}
					if jwtSecret != "" {
						if id, ok := verifyJWT(token, jwtSecret); ok {
							r = r.WithContext(clientctx.With(r.Context(), id))
							next.ServeHTTP(w, r)
							return
						}
					}
				}
			}

			writeError(w, http.StatusUnauthorized, api.ErrCodeUnauthorized, "invalid or missing credentials")
		})
	}
}

func verifyJWT(tokenStr, secret string) (clientID string, ok bool) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", false
	}
	return sub, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
