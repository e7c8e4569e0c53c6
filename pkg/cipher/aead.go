package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const aeadVersion = 0x01

// AEADCipher seals with AES-256-GCM under sha256(secret). Output is
// base64(0x01 | nonce | ciphertext).
type AEADCipher struct {
	gcm cipher.AEAD
}

func NewAEAD(secret string) (*AEADCipher, error) {
	h := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADCipher{gcm: gcm}, nil
}

func (c *AEADCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := make([]byte, 1, 1+len(nonce)+len(plaintext)+c.gcm.Overhead())
	out[0] = aeadVersion
	out = append(out, nonce...)
	out = c.gcm.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *AEADCipher) Decrypt(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(blob) < 1+c.gcm.NonceSize() || blob[0] != aeadVersion {
		return "", ErrMalformed
	}
	nonce := blob[1 : 1+c.gcm.NonceSize()]
	plain, err := c.gcm.Open(nil, nonce, blob[1+c.gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plain), nil
}
