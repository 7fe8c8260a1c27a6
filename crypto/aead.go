// Package crypto implements the cryptographic primitives of spec.md 4.1:
// AEAD encrypt/decrypt, legacy CBC, HMAC, constant-time compare, and
// password-based key derivation. Grounded on the AEAD-framing and
// key-handling discipline of infrastructure/cryptography/chacha20 in the
// teacher repo, adapted to the AES-256-GCM primitive spec.md names
// explicitly (see DESIGN.md).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 16 // spec.md 4.1: 16-byte IV/nonce for GCM or CBC
	TagSize   = 16
)

// RandomKey returns a fresh 32-byte key.
func RandomKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// RandomNonce returns a fresh 16-byte nonce/IV.
func RandomNonce() ([]byte, error) {
	return randomBytes(NonceSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// AEADEncrypt seals plaintext under key with nonce and aad using
// AES-256-GCM, producing ciphertext||tag. Because GCM's standard nonce
// size is 12 bytes and spec.md mandates 16-byte nonces uniformly across
// AEAD and CBC, only the leading 12 bytes of nonce are used as the GCM
// nonce; the full 16 bytes are still required from callers so a single
// nonce type flows through the session framing layer unchanged.
func AEADEncrypt(key, nonce, aad, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, errBadNonceSize(len(nonce), NonceSize)
	}
	return gcm.Seal(nil, nonce[:gcm.NonceSize()], plaintext, aad), nil
}

// AEADDecrypt opens ciphertext (which must include the trailing tag)
// under key with nonce and aad. On any authentication failure it returns
// (nil, err) — never partially-decrypted data (spec.md 4.1).
func AEADDecrypt(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, errBadNonceSize(len(nonce), NonceSize)
	}
	plaintext, err := gcm.Open(nil, nonce[:gcm.NonceSize()], ciphertext, aad)
	if err != nil {
		return nil, errAuthFail()
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errBadKeySize(len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
