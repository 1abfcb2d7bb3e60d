// Package auth verifies the JWT bearer tokens issued at signup. Tokens are
// HS256 with the user ID in the "sub" claim; WebSocket clients pass them as
// a query parameter since browsers cannot set headers on upgrade requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means the request carried no token at all.
	ErrNoToken = errors.New("auth: no token provided")
	// ErrInvalidToken means the token failed signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")
)

type contextKey struct{}

var userIDKey contextKey

// Verifier validates tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// NewVerifier creates a Verifier. Issued tokens expire after ttl.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the user.
func (v *Verifier) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user ID.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// FromRequest extracts a token from the Authorization header (Bearer
// scheme) or, failing that, the "token" query parameter.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	return r.URL.Query().Get("token")
}

// Authenticate resolves the requesting user from an HTTP request.
func (v *Verifier) Authenticate(r *http.Request) (string, error) {
	return v.Verify(FromRequest(r))
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// ID in the request context for handlers.
func (v *Verifier) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

// WithUserID stores the authenticated user ID in a context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user ID from a context, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
