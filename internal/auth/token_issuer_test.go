package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerIssuesAPITokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "localizd-auth",
		Audience:      "localizd-api",
		TokenTTL:      30 * time.Minute,
	})

	tokenString, expiresIn, err := issuer.IssueToken(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	parser := jwt.Parser{}
	claims := &jwt.RegisteredClaims{}
	_, err = parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "localizd-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "localizd-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
}

func TestTokenIssuerRejectsMissingSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		Issuer:   "localizd-auth",
		Audience: "localizd-api",
	})

	if _, _, err := issuer.IssueToken(context.Background(), "user-123"); err == nil {
		t.Fatalf("expected issuance error for missing secret")
	}
	if _, err := issuer.ValidateToken("whatever"); err == nil {
		t.Fatalf("expected validation error for missing secret")
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("another-secret"),
		Issuer:        "localizd-auth",
		Audience:      "localizd-api",
		TokenTTL:      15 * time.Minute,
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-456")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if subject != "user-456" {
		t.Fatalf("unexpected subject %s", subject)
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0).UTC()
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("expiring-secret"),
		Issuer:        "localizd-auth",
		Audience:      "localizd-api",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issuedAt },
	})

	tokenString, _, err := issuer.IssueToken(context.Background(), "user-789")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	later := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("expiring-secret"),
		Issuer:        "localizd-auth",
		Audience:      "localizd-api",
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issuedAt.Add(2 * time.Minute) },
	})
	if _, err := later.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTokenIssuerRejectsWrongAudience(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("shared-secret"),
		Issuer:        "localizd-auth",
		Audience:      "other-api",
		TokenTTL:      time.Minute,
	})
	tokenString, _, err := issuer.IssueToken(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	validator := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("shared-secret"),
		Issuer:        "localizd-auth",
		Audience:      "localizd-api",
		TokenTTL:      time.Minute,
	})
	if _, err := validator.ValidateToken(tokenString); err == nil {
		t.Fatalf("expected audience mismatch to be rejected")
	}
}
