package repository

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	plaintext, hash, prefix, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	if !strings.HasPrefix(plaintext, "lmk_") {
		t.Errorf("plaintext %q missing lmk_ prefix", plaintext)
	}
	if len(prefix) != 12 || !strings.HasPrefix(plaintext, prefix) {
		t.Errorf("prefix %q is not the first 12 chars of the key", prefix)
	}
	if hash == plaintext {
		t.Error("hash must not equal the plaintext key")
	}
	if HashKey(plaintext) != hash {
		t.Error("HashKey(plaintext) does not round-trip to the stored hash")
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	a, _, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b, _, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if a == b {
		t.Error("two generated keys are identical")
	}
}
