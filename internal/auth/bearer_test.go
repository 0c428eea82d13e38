package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		expectedToken string
		expectedErr   error
	}{
		{
			name:          "Missing Authorization Header",
			authorization: "",
			expectedErr:   errMissingAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - No Bearer",
			authorization: "Basic some_token",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Malformed Bearer Token",
			authorization: "BearerTokenWithoutSpace",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Invalid Authorization Header - Empty Bearer Token",
			authorization: "Bearer    ",
			expectedErr:   errInvalidAuthorizationHeader,
		},
		{
			name:          "Valid Bearer Token",
			authorization: "Bearer some_valid_token",
			expectedToken: "some_valid_token",
		},
		{
			name:          "Valid Bearer Token with extra spaces",
			authorization: "Bearer   some_valid_token   ",
			expectedToken: "some_valid_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				Header: http.Header{
					authorizationHeader: []string{tt.authorization},
				},
			}

			token, err := parseBearerToken(req)
			assert.Equal(t, tt.expectedToken, token)
			assert.Equal(t, tt.expectedErr, err)
		})
	}
}

func TestTokenFromRequestQueryFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/users/alice/recent?access_token=abc", nil)
	token, err := TokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "abc", token)

	req.Header.Set(authorizationHeader, "Bearer header_token")
	token, err = TokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "header_token", token)

	req = httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	_, err = TokenFromRequest(req)
	assert.Equal(t, errMissingAuthorizationHeader, err)
}
