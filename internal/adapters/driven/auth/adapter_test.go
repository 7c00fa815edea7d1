package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
)

func testClaims(now time.Time) *domain.SessionClaims {
	return &domain.SessionClaims{
		InstallationID: "inst_01HQ",
		LocationID:     "loc-123",
		IssuedAt:       now.Unix(),
		ExpiresAt:      now.Add(24 * time.Hour).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestNewAdapterWithCost(t *testing.T) {
	adapter := NewAdapterWithCost("test-secret", 4)
	if adapter.bcryptCost != 4 {
		t.Errorf("expected bcrypt cost 4, got %d", adapter.bcryptCost)
	}
}

func TestHashKey(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4) // Low cost for faster tests

	hash, err := adapter.HashKey("admin-key")
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}
	if hash == "" || hash == "admin-key" {
		t.Errorf("unexpected hash %q", hash)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("expected bcrypt hash with cost 4, got %q", hash)
	}

	other, _ := adapter.HashKey("admin-key")
	if hash == other {
		t.Error("expected different hashes for same key (due to salt)")
	}
}

func TestVerifyKey(t *testing.T) {
	adapter := NewAdapterWithCost("secret", 4)
	hash, _ := adapter.HashKey("correct-key")

	if !adapter.VerifyKey("correct-key", hash) {
		t.Error("expected key verification to succeed")
	}
	if adapter.VerifyKey("wrong-key", hash) {
		t.Error("expected key verification to fail for wrong key")
	}
	if adapter.VerifyKey("correct-key", "not-a-valid-hash") {
		t.Error("expected verification to fail for invalid hash")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	now := time.Now()
	original := testClaims(now)

	token, err := adapter.GenerateToken(original)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected JWT with 3 parts, got %q", token)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if parsed.InstallationID != original.InstallationID {
		t.Errorf("expected InstallationID %s, got %s", original.InstallationID, parsed.InstallationID)
	}
	if parsed.LocationID != original.LocationID {
		t.Errorf("expected LocationID %s, got %s", original.LocationID, parsed.LocationID)
	}
	if parsed.ExpiresAt != original.ExpiresAt || parsed.IssuedAt != original.IssuedAt {
		t.Errorf("timestamps not preserved: got %d/%d", parsed.IssuedAt, parsed.ExpiresAt)
	}
}

func TestGenerateToken_RequiresInstallation(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	if _, err := adapter.GenerateToken(nil); err != domain.ErrInvalidInput {
		t.Errorf("GenerateToken(nil) error = %v, want ErrInvalidInput", err)
	}
	if _, err := adapter.GenerateToken(&domain.SessionClaims{}); err != domain.ErrInvalidInput {
		t.Errorf("GenerateToken(empty) error = %v, want ErrInvalidInput", err)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	past := time.Now().Add(-2 * time.Hour)
	claims := testClaims(past.Add(-24 * time.Hour))
	claims.ExpiresAt = past.Unix()

	token, _ := adapter.GenerateToken(claims)

	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")

	if _, err := adapter.ParseToken("invalid.token.here"); err == nil {
		t.Error("expected error for invalid token")
	}
	if _, err := adapter.ParseToken(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret-1").GenerateToken(testClaims(time.Now()))

	if _, err := NewAdapter("secret-2").ParseToken(token); err == nil {
		t.Error("expected error for token signed with a different secret")
	}
}

func TestParseToken_WrongIssuer(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		InstallationID: "inst_1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, _ := token.SignedString([]byte("test-jwt-secret"))

	if _, err := NewAdapter("test-jwt-secret").ParseToken(signed); err == nil {
		t.Error("expected error for foreign issuer")
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{InstallationID: "inst_1"})
	signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)

	if _, err := NewAdapter("test-jwt-secret").ParseToken(signed); err == nil {
		t.Error("expected error for unsigned token")
	}
}

func BenchmarkParseToken(b *testing.B) {
	adapter := NewAdapter("test-secret")
	token, _ := adapter.GenerateToken(testClaims(time.Now()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ParseToken(token)
	}
}
