package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/paytrace/installments/internal/httpx"
)

type ctxKey string

const userIDCtxKey = ctxKey("userID")

// UserVerifier reports whether the user behind a syntactically valid token
// still exists. Deleting an account has to invalidate every outstanding
// token, so the id is re-resolved on each request.
type UserVerifier func(ctx context.Context, uid uint) bool

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	v := ctx.Value(userIDCtxKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrTokenMissing
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", ErrTokenMissing
	}
	return parts[1], nil
}

// RequireAuth resolves the bearer token, re-checks that the user exists, and
// stores the id in the request context. Every failure is a 401 with a
// distinct code.
func RequireAuth(tokens *Tokens, verify UserVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := BearerToken(r)
		if err != nil {
			httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
			return
		}
		uid, err := tokens.Parse(raw)
		if err != nil {
			code := "token_invalid"
			if errors.Is(err, ErrTokenExpired) {
				code = "token_expired"
			}
			httpx.JSONError(w, http.StatusUnauthorized, code, nil)
			return
		}
		if verify != nil && !verify(r.Context(), uid) {
			httpx.JSONError(w, http.StatusUnauthorized, "user_not_found", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}
