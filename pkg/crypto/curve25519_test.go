package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
)

func TestX25519SharedSecret(t *testing.T) {
	a, err := GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateX25519 failed: %v", err)
	}
	b, err := GenerateX25519(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateX25519 failed: %v", err)
	}

	s1, err := a.SharedSecret(b.Public[:])
	if err != nil {
		t.Fatalf("SharedSecret failed: %v", err)
	}
	s2, err := b.SharedSecret(a.Public[:])
	if err != nil {
		t.Fatalf("SharedSecret failed: %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Error("shared secrets differ")
	}
}

func TestX25519RejectsBadKeys(t *testing.T) {
	a, _ := GenerateX25519(rand.Reader)

	if _, err := a.SharedSecret(make([]byte, 31)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("short key error = %v, want ErrInvalidPublicKey", err)
	}
	if _, err := a.SharedSecret(make([]byte, 32)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("zero key error = %v, want ErrInvalidPublicKey", err)
	}
}

func TestEd25519(t *testing.T) {
	seed, err := GenerateEd25519Seed(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateEd25519Seed failed: %v", err)
	}
	priv, err := Ed25519FromSeed(seed)
	if err != nil {
		t.Fatalf("Ed25519FromSeed failed: %v", err)
	}

	msg := Concat([]byte("a"), []byte("bc"), nil, []byte("d"))
	if string(msg) != "abcd" {
		t.Fatalf("Concat() = %q", msg)
	}
	sig := ed25519.Sign(priv, msg)
	pub := priv.Public().(ed25519.PublicKey)

	if !Ed25519Verify(pub, msg, sig) {
		t.Error("valid signature rejected")
	}
	if Ed25519Verify(pub, []byte("abce"), sig) {
		t.Error("signature over other message accepted")
	}
	if Ed25519Verify(pub[:16], msg, sig) {
		t.Error("short public key accepted")
	}
	if _, err := Ed25519FromSeed(seed[:31]); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("short seed error = %v, want ErrInvalidSeed", err)
	}
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	Wipe(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("Wipe() left %x", b)
	}
}
