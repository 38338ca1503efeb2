// Package embedid turns internal resource identifiers into opaque tokens that are
// safe to place in public embed URLs, and back.
package embedid

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is returned for any token that cannot be turned back into an identifier:
// bad base64, missing separator, malformed hex, or failed padding validation.
// It never carries the offending token.
var ErrDecode = errors.New("embedid: invalid token")

const separator = ":"

// Codec encrypts identifiers with AES-256-CBC under a key derived from a shared secret.
// Every Encode uses a fresh random IV, so equal identifiers never produce equal tokens.
// A Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	block cipher.Block
}

// NewCodec derives a 32-byte key from secret with SHA-256, so secrets of any length work.
func NewCodec(secret string) *Codec {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// A 32-byte key is always valid for AES.
		panic(fmt.Sprintf("embedid: %v", err))
	}
	return &Codec{block: block}
}

// Encode returns base64(hex(iv) + ":" + hex(ciphertext)) for id.
func (c *Codec) Encode(id string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("embedid: read iv: %w", err)
	}

	plain := pad([]byte(id), aes.BlockSize)
	ct := make([]byte, len(plain))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ct, plain)

	payload := hex.EncodeToString(iv) + separator + hex.EncodeToString(ct)
	return base64.StdEncoding.EncodeToString([]byte(payload)), nil
}

// Decode reverses Encode. Any malformed or tampered token yields ErrDecode.
func (c *Codec) Decode(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", ErrDecode
	}

	ivHex, ctHex, ok := strings.Cut(string(raw), separator)
	if !ok {
		return "", ErrDecode
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrDecode
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrDecode
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, ct)

	id, ok := unpad(plain, aes.BlockSize)
	if !ok {
		return "", ErrDecode
	}
	return string(id), nil
}

// pad applies PKCS#7 padding.
func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding, reporting false if it is malformed.
func unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, false
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
