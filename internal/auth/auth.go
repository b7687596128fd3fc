// Package auth issues and verifies the bearer tokens the API trusts. User
// registration and login live outside this core; anything that can mint a
// token with the shared secret is a valid caller.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/directory"
	"github.com/onlyif-au/onlyif/internal/http/httputil"
)

// Claims is the JWT payload issued to marketplace users. The subject is the
// user id.
type Claims struct {
	Name string         `json:"name"`
	Role directory.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Role   directory.Role
}

type contextKey struct{}

// GenerateToken signs an HS256 token for a user.
func GenerateToken(user *directory.User, secret string, expiry time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(expiry)

	claims := Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses a signed token back into the caller's identity.
func Verify(raw, secret string) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("parsing token: %w", err)
	}

	if !token.Valid {
		return Identity{}, errors.New("token is not valid")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("parsing token subject: %w", err)
	}

	return Identity{UserID: userID, Name: claims.Name, Role: claims.Role}, nil
}

// Middleware rejects requests without a valid token and stores the caller's
// identity on the request context. Browsers cannot set headers on a websocket
// upgrade, so a token query parameter is accepted as well.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFrom(r)
			if raw == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
				return
			}

			identity, err := Verify(raw, secret)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole rejects authenticated callers outside the allowed roles.
func RequireRole(roles ...directory.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
				return
			}

			if !slices.Contains(roles, identity.Role) {
				httputil.WriteError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}

		return ""
	}

	return r.URL.Query().Get("token")
}

// WithIdentity attaches the caller's identity to a context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom reads the caller's identity off a context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
