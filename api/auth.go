package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"taglink/config"
	"taglink/logging"
)

// Authenticator verifies bearer tokens in front of every request the
// gateway serves. Verification passes when the token is a valid HMAC-signed
// JWT, or matches one of the configured static API tokens.
type Authenticator struct {
	cfg *config.AuthConfig
}

// NewAuthenticator creates an authenticator from config.
func NewAuthenticator(cfg *config.AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Verify checks a bearer token and returns the identity it carries.
func (a *Authenticator) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing token")
	}

	if a.cfg.JWTSecret != "" {
		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(a.cfg.JWTSecret), nil
		})
		if err == nil && parsed.Valid {
			if claims.Subject != "" {
				return claims.Subject, nil
			}
			return "jwt", nil
		}
	}

	for i := range a.cfg.Tokens {
		t := &a.cfg.Tokens[i]
		if bcrypt.CompareHashAndPassword([]byte(t.Hash), []byte(token)) == nil {
			return t.Name, nil
		}
	}

	return "", fmt.Errorf("invalid token")
}

// Middleware rejects requests without a valid bearer token. Auth failure is
// an immediate 401 with no side effects on the registry or poll loop.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		subject, err := a.Verify(token)
		if err != nil {
			logging.DebugLog("web", "auth rejected %s %s: %v", r.Method, r.URL.Path, err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		_ = subject
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for EventSource clients that cannot
// set headers.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// HashToken generates a bcrypt hash for a static API token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
