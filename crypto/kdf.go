package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the minimum spec.md 4.1 requires.
	PBKDF2Iterations = 100_000
	masterKeySize    = 64 // split into enc_key (32) + mac_key (32)
)

// DeriveKeyPBKDF2 derives a 64-byte master key from a password and salt
// using PBKDF2-HMAC-SHA-256.
func DeriveKeyPBKDF2(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, masterKeySize, sha256.New)
}

// Argon2idParams tunes the Argon2id KDF. Defaults follow the OWASP
// minimum recommendation for interactive use.
type Argon2idParams struct {
	Time    uint32
	MemoryKiB uint32
	Threads uint8
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// DeriveKeyArgon2id derives a 64-byte master key using Argon2id.
func DeriveKeyArgon2id(password, salt []byte, p Argon2idParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, masterKeySize)
}

// SessionKeys is the enc/mac key pair split from a derived master key
// (spec.md 4.1 "key separation").
type SessionKeys struct {
	EncKey []byte
	MACKey []byte
}

// DeriveSessionKeys derives enc/mac keys from a session code, salt, and
// rotation counter using HKDF-SHA256. A remesh that forces re-derivation
// increments the counter so a fresh transport substrate never reuses key
// material (spec.md 4.1).
func DeriveSessionKeys(sessionCode, salt []byte, rotationCounter uint32) SessionKeys {
	extendedSalt := make([]byte, len(salt)+4)
	copy(extendedSalt, salt)
	binary.BigEndian.PutUint32(extendedSalt[len(salt):], rotationCounter)

	r := hkdf.New(sha256.New, sessionCode, extendedSalt, []byte("sentinelfs-session-keys"))
	master := make([]byte, masterKeySize)
	_, _ = io.ReadFull(r, master)

	return SessionKeys{
		EncKey: append([]byte(nil), master[:32]...),
		MACKey: append([]byte(nil), master[32:]...),
	}
}
