package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const apiUserKey contextKey = "api_user"

// tokenTTL is the lifetime of a REST API bearer token.
const tokenTTL = 7 * 24 * time.Hour

// tokenIssuer is the iss claim of every token this server signs.
const tokenIssuer = "forcessl"

// APIUser is the authenticated REST API user stored in the request context.
type APIUser struct {
	ID       int64
	Username string
}

// APIClaims holds the JWT claims for REST API authentication.
type APIClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"user"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 JWT for a REST API user.
func GenerateToken(secret []byte, userID int64, username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tokenTTL)

	claims := APIClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
			Subject:   username,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RequireBearer returns middleware that validates JWT bearer tokens for
// write endpoints. On success it stores the APIUser in the request context.
func RequireBearer(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeRESTError(w, http.StatusUnauthorized, "rest_not_logged_in", "you are not currently logged in")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeRESTError(w, http.StatusUnauthorized, "rest_authentication_invalid_header", "invalid authorization header")
				return
			}

			claims := &APIClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				slog.Debug("rest auth: invalid jwt", "error", err)
				writeRESTError(w, http.StatusForbidden, "rest_authentication_invalid_token", "invalid or expired token")
				return
			}
			if claims.UserID == 0 || claims.Issuer != tokenIssuer {
				writeRESTError(w, http.StatusForbidden, "rest_authentication_invalid_token", "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), apiUserKey, &APIUser{ID: claims.UserID, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIUserFromContext returns the authenticated user, or nil.
func APIUserFromContext(ctx context.Context) *APIUser {
	u, _ := ctx.Value(apiUserKey).(*APIUser)
	return u
}
