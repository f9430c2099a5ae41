package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Test JWT Generation and Validation
func TestJWTGeneration(t *testing.T) {
	secret := "test-secret-key"
	userID := "user123"
	expiration := 1 * time.Hour

	// Generate token
	token, err := GenerateJWT(userID, secret, expiration)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if token == "" {
		t.Fatal("Generated token is empty")
	}

	// Validate token
	extractedUserID, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("Failed to validate JWT: %v", err)
	}

	if extractedUserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, extractedUserID)
	}
}

func TestJWTValidation_InvalidSecret(t *testing.T) {
	token, _ := GenerateJWT("user123", "test-secret-key", time.Hour)

	// Try to validate with wrong secret
	if _, err := ValidateJWT(token, "wrong-secret"); err == nil {
		t.Error("Should fail with wrong secret")
	}
}

func TestJWTValidation_ExpiredToken(t *testing.T) {
	secret := "test-secret-key"

	// Expired 1 hour ago
	token, _ := GenerateJWT("user123", secret, -1*time.Hour)

	if _, err := ValidateJWT(token, secret); err == nil {
		t.Error("Should fail with expired token")
	}
}

func TestJWTValidation_MalformedToken(t *testing.T) {
	if _, err := ValidateJWT("this.is.not.a.jwt", "test-secret-key"); err == nil {
		t.Error("Should fail with malformed token")
	}
}

func TestJWTValidation_RequiresExpiration(t *testing.T) {
	secret := "test-secret-key"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user123",
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ValidateJWT(token, secret); err == nil {
		t.Error("Should fail without an expiration claim")
	}
}

func TestJWTValidation_RequiresSubject(t *testing.T) {
	token, _ := GenerateJWT("", "test-secret-key", time.Hour)

	if _, err := ValidateJWT(token, "test-secret-key"); err == nil {
		t.Error("Should fail without a subject")
	}
}

func TestJWTValidation_RejectsOtherAlgorithms(t *testing.T) {
	secret := "test-secret-key"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := ValidateJWT(token, secret); err == nil {
		t.Error("Should only accept HS256 tokens")
	}
}

// Test Context Helpers
func TestContextHelpers(t *testing.T) {
	ctx := WithUserID(context.Background(), "user123")

	extractedUserID, ok := GetUserID(ctx)
	if !ok {
		t.Fatal("Failed to extract user ID from context")
	}

	if extractedUserID != "user123" {
		t.Errorf("Expected user ID %s, got %s", "user123", extractedUserID)
	}
}

func TestContextHelpers_NotFound(t *testing.T) {
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("Should not find user ID in empty context")
	}
}

// whoAmI answers with the user ID found in the context.
func whoAmI() RequestHandler {
	return HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
		userID, ok := GetUserID(ctx)
		if !ok {
			return JSON(http.StatusInternalServerError, map[string]string{"error": "user ID not found"}), nil
		}
		if fromRequest, _ := GetUserID(r.Context()); fromRequest != userID {
			return JSON(http.StatusInternalServerError, map[string]string{"error": "request context out of sync"}), nil
		}
		return JSON(http.StatusOK, map[string]string{"userID": userID}), nil
	})
}

// Test RequireAuth Middleware
func TestRequireAuth_ValidToken(t *testing.T) {
	secret := "test-secret"
	token, _ := GenerateJWT("user123", secret, time.Hour)

	chained := Chain(whoAmI(), RequireAuth(secret))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := chained.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	jsonResp, ok := resp.(JSONResponse)
	if !ok {
		t.Fatalf("Expected JSONResponse, got %T", resp)
	}
	if jsonResp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", jsonResp.StatusCode)
	}
	if data := jsonResp.Data.(map[string]string); data["userID"] != "user123" {
		t.Errorf("Expected userID user123, got %v", data)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	secret := "test-secret"
	foreign, _ := GenerateJWT("user123", "correct-secret", time.Hour)

	tests := []struct {
		name          string
		authorization string
		message       string
	}{
		{"missing token", "", "missing authorization header"},
		{"missing bearer", "some-token", "invalid authorization format"},
		{"empty bearer", "Bearer ", "invalid authorization format"},
		{"extra fields", "Bearer a b", "invalid authorization format"},
		{"invalid token", "Bearer invalid.token.here", "invalid token"},
		{"wrong secret", "Bearer " + foreign, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			chained := Chain(terminal(&reached), RequireAuth(secret))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}

			resp, err := chained.Handle(context.Background(), req)
			if err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}

			jsonResp, ok := resp.(JSONResponse)
			if !ok {
				t.Fatalf("Expected JSONResponse, got %T", resp)
			}
			if jsonResp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", jsonResp.StatusCode)
			}
			if data := jsonResp.Data.(map[string]string); data["error"] != tt.message {
				t.Errorf("Expected error %q, got %q", tt.message, data["error"])
			}
			if reached {
				t.Error("Chain should stop at RequireAuth")
			}
		})
	}
}
