package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth creates middleware that validates JWT tokens from the Authorization header.
// It expects the header format: "Authorization: Bearer <token>"
//
// If the token is valid, the user ID is added to the request context and the
// chain continues. If the token is invalid or missing, the chain stops with a
// 401 Unauthorized response.
//
// Usage:
//
//	d, _ := relay.NewDispatcher(relay.RequireAuth("your-secret-key"))
//	d.Use(relay.MiddlewareFunc(protected))
func RequireAuth(secret string) Middleware {
	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			return JSON(http.StatusUnauthorized, map[string]string{
				"error": "missing authorization header",
			}), nil
		}

		// Expected format: "Bearer <token>"
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" || strings.Contains(token, " ") {
			return JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid authorization format",
			}), nil
		}

		// Validate token and extract user ID
		userID, err := ValidateJWT(token, secret)
		if err != nil {
			return JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid token",
			}), nil
		}

		// Hand the user ID to the rest of the chain
		ctx = WithUserID(ctx, userID)
		return next.Handle(ctx, r.WithContext(ctx))
	})
}

// GenerateJWT creates a signed JWT token for the given user ID.
// The token includes standard claims (subject, issued at, expiration).
//
// Parameters:
//   - userID: The user identifier to embed in the token (stored as "sub" claim)
//   - secret: The secret key used to sign the token
//   - expiration: How long the token should be valid (e.g., 24 * time.Hour)
//
// Returns the signed token string or an error.
//
// Example:
//
//	token, err := relay.GenerateJWT("user123", "secret", 24*time.Hour)
func GenerateJWT(userID string, secret string, expiration time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses and validates an HS256 JWT token string.
// It verifies the signature, requires and checks expiration, and extracts the user ID.
//
// Parameters:
//   - tokenString: The JWT token to validate
//   - secret: The secret key used to verify the signature
//
// Returns the user ID (from "sub" claim) or an error if invalid.
//
// Example:
//
//	userID, err := relay.ValidateJWT(token, "secret")
func ValidateJWT(tokenString string, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	// The user ID travels in the "sub" claim
	if claims.Subject == "" {
		return "", errors.New("missing user ID in token")
	}

	return claims.Subject, nil
}

// WithUserID adds a user ID to the request context.
// This is typically called by authentication middleware.
//
// Example:
//
//	ctx = relay.WithUserID(ctx, "user123")
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
//
// This should be called by middleware and handlers running after RequireAuth.
//
// Example:
//
//	func MyHandler(ctx context.Context, r *http.Request) (relay.Response, error) {
//	    userID, ok := relay.GetUserID(ctx)
//	    if !ok {
//	        return relay.JSON(500, map[string]string{"error": "user not found"}), nil
//	    }
//	    // Use userID...
//	}
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}
