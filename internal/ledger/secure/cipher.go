package secure

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// Cipher transforms serialized payloads with the installation secret.
type Cipher interface {
	Encrypt(secret, plaintext string) (string, error)
	Decrypt(secret, ciphertext string) (string, error)
}

// XORCipher applies a repeating-key XOR over the UTF-8 bytes of the payload
// and Base64-encodes the result.  It is deterministic: equal plaintexts give
// equal ciphertexts.  It deters casual edits; it does not provide secrecy.
type XORCipher struct{}

func (XORCipher) Encrypt(secret, plaintext string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrEncrypt)
	}
	if !utf8.ValidString(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrEncrypt)
	}
	return base64.StdEncoding.EncodeToString(xor([]byte(plaintext), secret)), nil
}

func (XORCipher) Decrypt(secret, ciphertext string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrDecrypt)
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	out := xor(raw, secret)
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: result is not valid UTF-8", ErrDecrypt)
	}
	return string(out), nil
}

func xor(data []byte, key string) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
