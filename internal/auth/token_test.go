package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")

	token, err := GenerateJWT(7, "admin", "admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret")
	token, err := GenerateJWT(7, "admin", "admin@example.com")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "othersecret")
	_, err = ParseJWT(token)
	assert.Error(t, err)
}

func TestGenerateJWT_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := GenerateJWT(1, "admin", "admin@example.com")
	assert.Error(t, err)
}

func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name     string
		cookie   *http.Cookie
		header   string
		expected string
	}{
		{
			name:     "Cookie Preferred",
			cookie:   &http.Cookie{Name: "access_token", Value: "cookie-token"},
			header:   "Bearer header-token",
			expected: "cookie-token",
		},
		{
			name:     "Header Fallback",
			header:   "Bearer header-token",
			expected: "header-token",
		},
		{
			name:     "Empty Cookie Falls Back to Header",
			cookie:   &http.Cookie{Name: "access_token", Value: ""},
			header:   "Bearer header-token",
			expected: "header-token",
		},
		{
			name:     "No Token",
			expected: "",
		},
		{
			name:     "Malformed Header",
			header:   "Token abc",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			assert.Equal(t, tt.expected, ExtractAccessToken(req))
		})
	}
}
