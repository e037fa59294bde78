package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(tokens *TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(Middleware(tokens))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(userID))
	})
	return router
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokenManager("a-long-enough-test-secret", time.Hour)
	token, err := tokens.GenerateToken("alice", nil)
	require.NoError(t, err)
	router := newProtectedRouter(tokens)

	t.Run("should allow public paths without token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("should reject a missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should reject an invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.Header.Set("Authorization", "Bearer nope")
		router.ServeHTTP(rec, r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should inject the user from the header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "alice", rec.Body.String())
	})

	t.Run("should inject the user from the query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "alice", rec.Body.String())
	})
}
