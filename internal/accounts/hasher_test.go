package accounts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)
	digest, err := hasher.Hash("open-sesame")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !hasher.Verify("open-sesame", digest) {
		t.Fatalf("expected the original password to verify")
	}
	if hasher.Verify("open-sesame!", digest) || hasher.Verify("open-sesame", "") {
		t.Fatalf("expected mismatches to fail")
	}
}

func TestNewBcryptHasherFallsBackToDefaultCost(t *testing.T) {
	if hasher := NewBcryptHasher(0); hasher.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", hasher.cost)
	}
	if hasher := NewBcryptHasher(bcrypt.MaxCost + 1); hasher.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", hasher.cost)
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	directory := newTestDirectory(t)
	_, err := directory.Register(context.Background(), RegisterInput{
		Email:       "long@example.com",
		Password:    strings.Repeat("p", 73),
		DisplayName: "Long",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected the hasher cause to be preserved, got %v", err)
	}
}
