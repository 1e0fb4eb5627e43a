package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, clock func() time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "cadence-auth",
		Audience:      "cadence-api",
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return issuer
}

func TestTokenIssuerIssuesAccountTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, expiresIn, err := issuer.IssueAccountToken(context.Background(), AccountClaims{
		Subject:     "account-123",
		Email:       "listener@example.com",
		DisplayName: "Listener",
	})
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", expiresIn)
	}

	claims := &accessTokenClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("failed to parse generated token: %v", err)
	}
	if claims.Subject != "account-123" {
		t.Fatalf("unexpected subject %s", claims.Subject)
	}
	if claims.Issuer != "cadence-auth" {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != "cadence-api" {
		t.Fatalf("unexpected audience %#v", claims.Audience)
	}
	if claims.Email != "listener@example.com" || claims.DisplayName != "Listener" {
		t.Fatalf("unexpected profile claims %#v", claims)
	}
}

func TestTokenIssuerValidatesIssuedTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)

	tokenString, _, err := issuer.IssueAccountToken(context.Background(), AccountClaims{Subject: "account-321"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	subject, err := issuer.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("expected validation success: %v", err)
	}
	if subject != "account-321" {
		t.Fatalf("unexpected subject %s", subject)
	}

	if _, err := issuer.ValidateToken("invalid.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for malformed input, got %v", err)
	}
	if _, err := issuer.ValidateToken("  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredTokens(t *testing.T) {
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, func() time.Time { return now })

	tokenString, _, err := issuer.IssueAccountToken(context.Background(), AccountClaims{Subject: "account-1"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if _, err := issuer.ValidateToken(tokenString); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	other, err := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("super-secret"),
		Issuer:        "someone-else",
		Audience:      "cadence-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	foreign, _, err := other.IssueAccountToken(context.Background(), AccountClaims{Subject: "account-1"})
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}
	if _, err := issuer.ValidateToken(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign issuer, got %v", err)
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:  "account-1",
		Issuer:   "cadence-auth",
		Audience: []string{"cadence-api"},
	})
	unsignedString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := issuer.ValidateToken(unsignedString); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for unsigned input, got %v", err)
	}
}

func TestTokenIssuerRequiresSubject(t *testing.T) {
	issuer := newTestIssuer(t, nil)
	if _, _, err := issuer.IssueAccountToken(context.Background(), AccountClaims{Subject: " "}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected missing subject, got %v", err)
	}
}

func TestNewTokenIssuerValidatesConfig(t *testing.T) {
	cases := map[string]struct {
		config   TokenIssuerConfig
		expected error
	}{
		"secret":   {TokenIssuerConfig{Issuer: "cadence-auth", Audience: "cadence-api", TokenTTL: time.Minute}, ErrMissingSigningSecret},
		"issuer":   {TokenIssuerConfig{SigningSecret: []byte("s"), Audience: "cadence-api", TokenTTL: time.Minute}, ErrMissingIssuer},
		"audience": {TokenIssuerConfig{SigningSecret: []byte("s"), Issuer: "cadence-auth", Audience: " ", TokenTTL: time.Minute}, ErrMissingAudience},
		"ttl":      {TokenIssuerConfig{SigningSecret: []byte("s"), Issuer: "cadence-auth", Audience: "cadence-api"}, ErrInvalidTokenTTL},
	}
	for name, testCase := range cases {
		if _, err := NewTokenIssuer(testCase.config); !errors.Is(err, testCase.expected) {
			t.Fatalf("%s: expected %v, got %v", name, testCase.expected, err)
		}
	}
}
