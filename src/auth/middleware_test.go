package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashToken(t *testing.T, token string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func protectedHandler(t *testing.T, gotCaller *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := GetCallerFromContext(r.Context())
		require.True(t, ok)
		*gotCaller = caller.Name
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireToken_ValidToken(t *testing.T) {
	var caller string
	mw := RequireToken(
		TokenSpec{Name: "webhook", Hash: hashToken(t, "secret-1")},
		TokenSpec{Name: "executor", Hash: hashToken(t, "secret-2")},
	)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", nil)
	req.Header.Set("Authorization", "Bearer secret-2")
	rec := httptest.NewRecorder()

	mw(protectedHandler(t, &caller)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "executor", caller)
}

func TestRequireToken_Rejections(t *testing.T) {
	mw := RequireToken(TokenSpec{Name: "webhook", Hash: hashToken(t, "secret-1")})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"wrong scheme", "Basic secret-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/whale", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			})).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireToken_EmptyHashNeverMatches(t *testing.T) {
	mw := RequireToken(TokenSpec{Name: "webhook", Hash: ""})

	req := httptest.NewRequest(http.MethodPost, "/webhook/whale", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
