package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dvloznov/khatalens/internal/api/middleware"
)

type ctxKey string

const ctxUsername ctxKey = "username"

// issueToken signs a session token naming the identity. Login accepts any
// non-empty credential pair, so the token routes requests to the right
// session; it is not a security boundary.
func (h *Handler) issueToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(h.secret))
	if err != nil {
		return "", fmt.Errorf("issueToken: %w", err)
	}
	return signed, nil
}

// parseToken validates the token signature and extracts the identity.
func (h *Handler) parseToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("parseToken: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("parseToken: invalid claims")
	}
	username, _ := claims["sub"].(string)
	if username == "" {
		return "", fmt.Errorf("parseToken: missing subject")
	}
	return username, nil
}

// authMiddleware resolves the bearer token to a username in the context.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			middleware.WriteError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		username, err := h.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUsername, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// usernameFrom returns the authenticated identity from the context.
func usernameFrom(r *http.Request) string {
	username, _ := r.Context().Value(ctxUsername).(string)
	return username
}
