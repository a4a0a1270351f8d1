package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const hostContextKey contextKey = "host"

// Имена JWT claims, которые выдаёт платформа-эмитент токенов.
const (
	jwtClaimHostID = "host_id"
	jwtClaimRole   = "role"
)

// Authenticate проверяет Bearer-токен и кладёт claims в контекст запроса.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), hostContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize пропускает только токены с одной из перечисленных ролей.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(hostContextKey).(jwt.MapClaims)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			role, _ := claims[jwtClaimRole].(string)
			for _, allowed := range roles {
				if allowed == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// GetHostIDFromContext достаёт идентификатор хоста из JWT claims.
func GetHostIDFromContext(ctx context.Context) (int, error) {
	claims, ok := ctx.Value(hostContextKey).(jwt.MapClaims)
	if !ok {
		return 0, errors.New("host claims not found in context or invalid type")
	}

	raw, ok := claims[jwtClaimHostID]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", jwtClaimHostID)
	}

	// JSON-числа приходят как float64.
	asFloat, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid type for '%s' claim: expected number, got %T", jwtClaimHostID, raw)
	}
	if asFloat != float64(int(asFloat)) {
		return 0, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimHostID, asFloat)
	}

	hostID := int(asFloat)
	if hostID <= 0 {
		return 0, fmt.Errorf("invalid host ID value in '%s' claim: %d", jwtClaimHostID, hostID)
	}
	return hostID, nil
}
