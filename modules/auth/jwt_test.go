package auth

import (
	"testing"
	"time"
)

func testJWTConfig() JWTConfig {
	return DefaultJWTConfig("test-secret-key", "http://localhost:3000")
}

func TestJWTManager_GenerateAndValidateAccessToken(t *testing.T) {
	config := testJWTConfig()
	manager := NewJWTManager(config)

	userID := "user-123"
	email := "test@example.com"

	token, expiresAt, err := manager.GenerateAccessToken(userID, email)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Error("GenerateAccessToken() returned empty token")
	}
	if d := time.Until(expiresAt); d <= 14*time.Minute || d > 15*time.Minute {
		t.Errorf("access token expires in %v, want ~15m", d)
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, userID)
	}
	if claims.Email != email {
		t.Errorf("claims.Email = %v, want %v", claims.Email, email)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("claims.TokenType = %v, want %v", claims.TokenType, TokenTypeAccess)
	}
	if claims.Issuer != config.Issuer {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, config.Issuer)
	}
	if claims.ID == "" {
		t.Error("claims.ID is empty")
	}
}

func TestJWTManager_TokensHaveDistinctIDs(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	a, _, err := manager.GenerateRefreshToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	b, _, err := manager.GenerateRefreshToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	ca, _ := manager.ValidateRefreshToken(a)
	cb, _ := manager.ValidateRefreshToken(b)
	if ca.ID == cb.ID {
		t.Errorf("two refresh tokens share id %q", ca.ID)
	}
}

func TestJWTManager_TypeConfusion(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	access, _, _ := manager.GenerateAccessToken("user-123", "test@example.com")
	refresh, _, _ := manager.GenerateRefreshToken("user-123", "test@example.com")
	reset, _ := manager.GenerateResetToken("user-123", "test@example.com")
	state, _ := manager.GenerateStateToken()

	tests := []struct {
		name     string
		token    string
		validate func(string) (*JWTClaims, error)
	}{
		{"access as refresh", access, manager.ValidateRefreshToken},
		{"refresh as access", refresh, manager.ValidateAccessToken},
		{"reset as access", reset, manager.ValidateAccessToken},
		{"state as reset", state, manager.ValidateResetToken},
		{"access as state", access, manager.ValidateStateToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validate(tt.token)
			if err != ErrInvalidToken {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWTManager_InvalidToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "random string",
			token: "not.a.valid.token",
		},
		{
			name:  "malformed jwt",
			token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateToken(tt.token)
			if err != ErrInvalidToken {
				t.Errorf("ValidateToken() error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	issuer := NewJWTManager(DefaultJWTConfig("secret-one", "http://localhost:3000"))
	verifier := NewJWTManager(DefaultJWTConfig("secret-two", "http://localhost:3000"))

	token, _, err := issuer.GenerateAccessToken("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := verifier.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	issuer := NewJWTManager(DefaultJWTConfig("secret", "http://other.example"))
	verifier := NewJWTManager(DefaultJWTConfig("secret", "http://localhost:3000"))

	token, _, _ := issuer.GenerateAccessToken("user-123", "test@example.com")
	if _, err := verifier.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())
	manager.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := manager.GenerateAccessToken("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	manager.now = time.Now
	if _, err := manager.ValidateAccessToken(token); err != ErrExpiredToken {
		t.Errorf("ValidateAccessToken() error = %v, want %v", err, ErrExpiredToken)
	}
}
