package application

import (
	"errors"
	"strings"
	"testing"
)

func TestParseAuthKey(t *testing.T) {
	t.Parallel()

	valid := []struct {
		identity, numeric string
		want              AuthKey
	}{
		{"123A", "4567", AuthKey{Identity: "123A", Numeric: "4567"}},
		{" 999z ", "0000", AuthKey{Identity: "999Z", Numeric: "0000"}},
	}
	for _, tc := range valid {
		got, err := ParseAuthKey(tc.identity, tc.numeric)
		if err != nil {
			t.Fatalf("ParseAuthKey(%q, %q) failed: %v", tc.identity, tc.numeric, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAuthKey(%q, %q) = %+v, want %+v", tc.identity, tc.numeric, got, tc.want)
		}
	}

	invalid := [][2]string{
		{"12A", "4567"},
		{"1234", "4567"},
		{"A123", "4567"},
		{"123A", "456"},
		{"123A", "45a7"},
		{"", ""},
	}
	for _, tc := range invalid {
		_, err := ParseAuthKey(tc[0], tc[1])
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("ParseAuthKey(%q, %q) expected ValidationError, got %v", tc[0], tc[1], err)
		}
	}

	_, err := ParseAuthKey("bad", "bad")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || len(vErr.FieldErrors) != 2 {
		t.Fatalf("expected both fields reported, got %v", err)
	}
}

func TestParseAuthKeyPair(t *testing.T) {
	t.Parallel()

	key, err := ParseAuthKeyPair("123A:4567")
	if err != nil || key.String() != "123A:4567" {
		t.Fatalf("ParseAuthKeyPair = %+v, %v", key, err)
	}
	if _, err := ParseAuthKeyPair("123A4567"); err == nil {
		t.Fatalf("expected error for missing separator")
	}
}

func TestKeyDigester(t *testing.T) {
	t.Parallel()

	if _, err := NewKeyDigester(nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewKeyDigester([]byte(strings.Repeat("x", 65))); err == nil {
		t.Fatalf("expected error for oversized secret")
	}

	first, err := NewKeyDigester([]byte("one"))
	if err != nil {
		t.Fatalf("NewKeyDigester failed: %v", err)
	}
	second, _ := NewKeyDigester([]byte("two"))
	key := AuthKey{Identity: "123A", Numeric: "4567"}

	digest := first.Digest(key)
	if len(digest) != 64 {
		t.Fatalf("expected 32 byte hex digest, got %q", digest)
	}
	if digest != first.Digest(key) {
		t.Fatalf("expected stable digest")
	}
	if digest == second.Digest(key) {
		t.Fatalf("expected digest to depend on the secret")
	}
	if digest == first.Digest(AuthKey{Identity: "123A", Numeric: "4568"}) {
		t.Fatalf("expected digest to depend on the key")
	}
	if strings.Contains(digest, "123A") {
		t.Fatalf("digest must not contain the raw key")
	}
}
