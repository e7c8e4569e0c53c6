// Package cipher protects the values handed to tenant applications in the
// final redirect: the user's email and the daily interface key.
package cipher

import (
	"errors"
	"fmt"
)

// Cipher encrypts text into a base64 string and back.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

const (
	ModeLegacy = "legacy"
	ModeAEAD   = "aead"
)

var ErrMalformed = errors.New("cipher: malformed ciphertext")

// New returns the Cipher for mode keyed by secret.
func New(mode, secret string) (Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher: empty secret")
	}
	switch mode {
	case ModeLegacy, "":
		return NewLegacy(secret)
	case ModeAEAD:
		return NewAEAD(secret)
	default:
		return nil, fmt.Errorf("cipher: unknown mode %q", mode)
	}
}
