package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/scrimverse-engine/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T, wantHostID int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hostID, err := middleware.GetHostIDFromContext(r.Context())
		require.NoError(t, err)
		assert.Equal(t, wantHostID, hostID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	chain := middleware.Authenticate(testSecret)(protectedHandler(t, 17))

	t.Run("valid token passes", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"host_id": 17,
			"role":    "host",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := signToken(t, []byte("other-secret"), jwt.MapClaims{"host_id": 17})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"host_id": 17,
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	chain := middleware.Authenticate(testSecret)(middleware.Authorize("host")(ok))

	t.Run("host role allowed", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"host_id": 5, "role": "host"})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other role forbidden", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"host_id": 5, "role": "player"})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no claims in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		middleware.Authorize("host")(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetHostIDFromContextValidation(t *testing.T) {
	run := func(claims jwt.MapClaims) int {
		var code int
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := middleware.GetHostIDFromContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				code = http.StatusUnauthorized
				return
			}
			code = http.StatusOK
			w.WriteHeader(http.StatusOK)
		})
		token := signToken(t, testSecret, claims)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		middleware.Authenticate(testSecret)(handler).ServeHTTP(rec, req)
		return code
	}

	assert.Equal(t, http.StatusOK, run(jwt.MapClaims{"host_id": 3}))
	assert.Equal(t, http.StatusUnauthorized, run(jwt.MapClaims{}))
	assert.Equal(t, http.StatusUnauthorized, run(jwt.MapClaims{"host_id": "three"}))
	assert.Equal(t, http.StatusUnauthorized, run(jwt.MapClaims{"host_id": 3.5}))
	assert.Equal(t, http.StatusUnauthorized, run(jwt.MapClaims{"host_id": 0}))
	assert.Equal(t, http.StatusUnauthorized, run(jwt.MapClaims{"host_id": -2}))
}
