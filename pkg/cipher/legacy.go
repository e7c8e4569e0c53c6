package cipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// LegacyCipher is the format tenant applications already decrypt:
// AES-128-CBC with PKCS#7 padding, standard base64 output. The key is the
// secret truncated or zero-padded to 16 bytes and the same bytes are the IV,
// so equal plaintexts produce equal ciphertexts. Prefer AEADCipher for any
// consumer that can be upgraded.
type LegacyCipher struct {
	block cipher.Block
	iv    []byte
}

func NewLegacy(secret string) (*LegacyCipher, error) {
	key := make([]byte, aes.BlockSize)
	copy(key, secret)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &LegacyCipher{block: block, iv: key}, nil
}

func (c *LegacyCipher) Encrypt(plaintext string) (string, error) {
	src := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(dst, src)
	return base64.StdEncoding.EncodeToString(dst), nil
}

func (c *LegacyCipher) Decrypt(ciphertext string) (string, error) {
	src, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(src) == 0 || len(src)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}
	dst := make([]byte, len(src))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(dst, src)
	out, err := pkcs7Unpad(dst, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrMalformed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrMalformed
		}
	}
	return b[:len(b)-n], nil
}
