package application

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	identityPattern = regexp.MustCompile(`^[0-9]{3}[A-Z]$`)
	numericPattern  = regexp.MustCompile(`^[0-9]{4}$`)
)

// AuthKey is the two-factor knowledge check: the last four characters of a
// national identity number and the last four digits of a phone number.
type AuthKey struct {
	Identity string
	Numeric  string
}

// String renders the key as IDENTITY:NUMERIC.
func (k AuthKey) String() string {
	return k.Identity + ":" + k.Numeric
}

// ParseIdentity validates the identity fragment.
func ParseIdentity(value string) (string, error) {
	identity := strings.ToUpper(strings.TrimSpace(value))
	if !identityPattern.MatchString(identity) {
		return "", newValidationError("identity", "expected three digits followed by a letter, e.g. 123A")
	}
	return identity, nil
}

// ParseNumeric validates the numeric fragment.
func ParseNumeric(value string) (string, error) {
	numeric := strings.TrimSpace(value)
	if !numericPattern.MatchString(numeric) {
		return "", newValidationError("numeric", "expected exactly four digits, e.g. 4567")
	}
	return numeric, nil
}

// ParseAuthKey validates both fragments and reports every issue at once.
func ParseAuthKey(identity, numeric string) (AuthKey, error) {
	vErr := &ValidationError{}
	id, err := ParseIdentity(identity)
	if err != nil {
		vErr.merge(asValidation(err))
	}
	num, err := ParseNumeric(numeric)
	if err != nil {
		vErr.merge(asValidation(err))
	}
	if vErr.HasErrors() {
		return AuthKey{}, vErr
	}
	return AuthKey{Identity: id, Numeric: num}, nil
}

// ParseAuthKeyPair parses the IDENTITY:NUMERIC form used in configuration.
func ParseAuthKeyPair(pair string) (AuthKey, error) {
	identity, numeric, ok := strings.Cut(pair, ":")
	if !ok {
		return AuthKey{}, newValidationError("key", fmt.Sprintf("expected IDENTITY:NUMERIC, got %q", pair))
	}
	return ParseAuthKey(identity, numeric)
}

func asValidation(err error) *ValidationError {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return nil
}

// KeyDigester hashes auth keys with a keyed BLAKE2b-256 so the allow-list never
// stores raw knowledge factors.
type KeyDigester struct {
	secret []byte
}

// NewKeyDigester validates the secret length accepted by BLAKE2b.
func NewKeyDigester(secret []byte) (*KeyDigester, error) {
	if len(secret) == 0 {
		return nil, errors.New("application: allow-list secret is required")
	}
	if len(secret) > blake2b.Size {
		return nil, fmt.Errorf("application: allow-list secret must be at most %d bytes", blake2b.Size)
	}
	dup := make([]byte, len(secret))
	copy(dup, secret)
	return &KeyDigester{secret: dup}, nil
}

// Digest returns the hex digest of key.
func (d *KeyDigester) Digest(key AuthKey) string {
	h, err := blake2b.New256(d.secret)
	if err != nil {
		// Secret length is checked by NewKeyDigester.
		panic(err)
	}
	h.Write([]byte(key.String()))
	return hex.EncodeToString(h.Sum(nil))
}
