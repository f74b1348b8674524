package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("K7M2QX9P")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "K7M2QX9P" || strings.Contains(hash, "K7M2QX9P") {
		t.Fatalf("digest leaks plaintext: %q", hash)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Fatalf("expected versioned bcrypt digest, got %q", hash)
	}
	if err := h.Compare(hash, "K7M2QX9P"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "K7M2QX9Q"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestBcryptHasher_Salted(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("SAMECODE")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("SAMECODE")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("two digests of the same code must differ")
	}
}

func TestNewBcryptHasher_CostBounds(t *testing.T) {
	if NewBcryptHasher(0).cost != bcrypt.DefaultCost {
		t.Fatalf("zero cost should fall back to default")
	}
	if NewBcryptHasher(bcrypt.MaxCost+1).cost != bcrypt.DefaultCost {
		t.Fatalf("cost above max should fall back to default")
	}
	if NewBcryptHasher(12).cost != 12 {
		t.Fatalf("valid cost must be kept")
	}
}
