package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	// empty-input digest is a fixed vector
	if got := SHA256Hex(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("SHA256Hex(nil) = %q", got)
	}

	got := SHA256Hex([]byte("hello world"))
	if len(got) != 64 {
		t.Fatalf("digest length = %d", len(got))
	}
	if got != strings.ToLower(got) {
		t.Fatalf("digest not lowercase: %q", got)
	}
	sum := sha256.Sum256([]byte("hello world"))
	if got != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest mismatch: %q", got)
	}
}

func TestHashEqual(t *testing.T) {
	a := SHA256Hex([]byte("same"))
	b := SHA256Hex([]byte("same"))
	if !HashEqual(a, b) {
		t.Fatal("equal digests reported unequal")
	}
	if HashEqual(a, SHA256Hex([]byte("other"))) {
		t.Fatal("different digests reported equal")
	}
	if !HashEqual("", "") {
		t.Fatal("two empty strings should match")
	}
	if HashEqual(a, "") || HashEqual("", a) {
		t.Fatal("digest vs empty should not match")
	}
	if HashEqual(a, strings.ToUpper(a)) {
		t.Fatal("comparison must be case-sensitive")
	}
	if HashEqual(a, a[:32]) {
		t.Fatal("digest must not match its prefix")
	}
}

func FuzzHashEqual(f *testing.F) {
	f.Add("abc", "abc")
	f.Add("abc", "def")
	f.Add("", "")
	f.Add("a", "")

	f.Fuzz(func(t *testing.T, a, b string) {
		if got, want := HashEqual(a, b), a == b; got != want {
			t.Errorf("HashEqual(%q, %q) = %v, want %v", a, b, got, want)
		}
	})
}
