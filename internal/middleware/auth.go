package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/leaderhub/internal/auth"
)

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

type positionKey struct{}

// Authenticate requires a valid "Authorization: Bearer <access token>"
// header. The token's provider id and position are stored in the request
// context. Missing or invalid tokens get a 401 auth_failed envelope.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="leaderhub"`)
				writeErrorEnvelope(w, r, http.StatusUnauthorized, "auth_failed", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="leaderhub", error="invalid_token"`)
				msg := "Invalid access token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Access token has expired"
				}
				writeErrorEnvelope(w, r, http.StatusUnauthorized, "auth_failed", msg)
				return
			}

			ctx := SetProviderID(r.Context(), claims.ProviderID())
			ctx = context.WithValue(ctx, positionKey{}, claims.Position)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPosition returns the authenticated provider's position claim.
func GetPosition(r *http.Request) string {
	if p, ok := r.Context().Value(positionKey{}).(string); ok {
		return p
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeErrorEnvelope writes {"error":{"code","message"}} for responses
// produced by middleware. api.WriteError is the handler-side equivalent.
func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
