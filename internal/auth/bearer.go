package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	accessTokenParam    = "access_token"
)

var (
	errMissingAuthorizationHeader = errors.New("missing Authorization header")
	errInvalidAuthorizationHeader = errors.New("invalid Authorization header")
)

func parseBearerToken(r *http.Request) (string, error) {
	reqToken := r.Header.Get(authorizationHeader)
	if reqToken == "" {
		return "", errMissingAuthorizationHeader
	}
	token, ok := strings.CutPrefix(reqToken, bearerPrefix)
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", errInvalidAuthorizationHeader
	}
	return token, nil
}

// TokenFromRequest reads the bearer token, falling back to the
// access_token query parameter that browsers use on websocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	token, err := parseBearerToken(r)
	if errors.Is(err, errMissingAuthorizationHeader) {
		if q := r.URL.Query().Get(accessTokenParam); q != "" {
			return q, nil
		}
	}
	return token, err
}
