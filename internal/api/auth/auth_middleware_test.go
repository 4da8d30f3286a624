package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

func TestAuthenticate(t *testing.T) {
	tokens, err := NewTokenIssuer(testJWTConfig())
	require.NoError(t, err)

	user := activeUser("test@example.com", "password123")

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, user.ID, id)

		email, ok := GetUserEmailFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, user.Email, email)

		w.WriteHeader(http.StatusOK)
	})

	t.Run("ValidToken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()

		token, err := tokens.IssueAccess(user.ID.String(), user.Email)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, mockRepo)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("EmailComesFromTokenClaim", func(t *testing.T) {
		// The store record may carry a newer email; downstream consumers
		// see the claim the token was signed with.
		record := activeUser("renamed@example.com", "password123")
		mockRepo := new(MockUserRepo)
		mockRepo.On("GetUserByID", mock.Anything, record.ID).Return(record, nil).Once()

		token, err := tokens.IssueAccess(record.ID.String(), "original@example.com")
		require.NoError(t, err)

		claimHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := GetUserEmailFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, "original@example.com", email)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, mockRepo)(claimHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, new(MockUserRepo))(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing access token")
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, new(MockUserRepo))(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing access token")
	})

	t.Run("GarbageToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, new(MockUserRepo))(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired token")
	})

	t.Run("RefreshTokenRejected", func(t *testing.T) {
		refresh, err := tokens.IssueRefresh(user.ID.String(), user.Email)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+refresh)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, new(MockUserRepo))(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("UserGone", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(nil, api.ErrNotFound).Once()

		token, err := tokens.IssueAccess(user.ID.String(), user.Email)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, mockRepo)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "User not found")
	})

	t.Run("DeactivatedUser", func(t *testing.T) {
		inactive := activeUser("off@example.com", "password123")
		inactive.IsActive = false

		mockRepo := new(MockUserRepo)
		mockRepo.On("GetUserByID", mock.Anything, inactive.ID).Return(inactive, nil).Once()

		token, err := tokens.IssueAccess(inactive.ID.String(), inactive.Email)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		Authenticate(slog.Default(), tokens, mockRepo)(okHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "User account is deactivated")
	})
}
