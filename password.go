package relay

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the computational cost of the bcrypt algorithm.
// Higher values are more secure but slower.
const bcryptCost = 12

// HashPassword generates a bcrypt hash of the given password.
// The resulting hash is safe to store in configuration or a database.
//
// Example:
//
//	hash, err := relay.HashPassword("user_password123")
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies that a plaintext password matches a bcrypt hash.
// Returns nil if the password is correct, or an error if incorrect.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// BasicAuth creates middleware that checks HTTP Basic credentials against
// users, a map of user name to bcrypt hash. On success the user name is
// added to the context (see GetUserID) and the chain continues; otherwise
// the chain stops with a 401 carrying a WWW-Authenticate challenge.
func BasicAuth(realm string, users map[string]string) Middleware {
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm)

	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		name, password, ok := r.BasicAuth()
		if !ok {
			return unauthorized(challenge, "missing credentials"), nil
		}

		hash, known := users[name]
		if !known || CheckPassword(password, hash) != nil {
			return unauthorized(challenge, "invalid credentials"), nil
		}

		ctx = WithUserID(ctx, name)
		return next.Handle(ctx, r.WithContext(ctx))
	})
}

func unauthorized(challenge, reason string) Response {
	return WithHeader(JSON(http.StatusUnauthorized, map[string]string{"error": reason}), "WWW-Authenticate", challenge)
}
