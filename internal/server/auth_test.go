package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "00000000-0000-0000-0000-000000000001",
		"usr": "alice",
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	auth := NewAuthService(nil, "test-secret")

	username, err := auth.Verify(signTestToken(t, "test-secret", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	auth := NewAuthService(nil, "test-secret")

	_, err := auth.Verify(signTestToken(t, "other-secret", time.Hour))
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	auth := NewAuthService(nil, "test-secret")

	_, err := auth.Verify(signTestToken(t, "test-secret", -time.Minute))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	auth := NewAuthService(nil, "test-secret")

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	protected := auth.Middleware(next)

	t.Run("no header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, "test-secret", time.Hour))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "alice", gotUser)
	})
}
