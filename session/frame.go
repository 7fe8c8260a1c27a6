package session

import (
	"encoding/binary"

	"sentinelfs/crypto"
)

// Frame is the wire-level authenticated message of spec.md 4.2:
//
//	version:u8 | sequence:u64 | nonce:16B | ciphertext+tag (AEAD)
//	  or ciphertext | hmac:32B (legacy)
//
// Authenticated data is version||sequence.
type Frame struct {
	Version    uint8
	Sequence   uint64
	Nonce      []byte
	Ciphertext []byte // includes AEAD tag when AEAD is used
	HMAC       []byte // legacy mode only
}

const frameHeaderLen = 1 + 8 + crypto.NonceSize

// aad returns the authenticated-data prefix: version||sequence.
func aad(version uint8, seq uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = version
	binary.BigEndian.PutUint64(buf[1:], seq)
	return buf
}

// EncodeAEAD builds the wire bytes for an AEAD-protected frame.
func EncodeAEAD(f Frame) []byte {
	out := make([]byte, 0, frameHeaderLen+len(f.Ciphertext))
	out = append(out, f.Version)
	seqBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBuf, f.Sequence)
	out = append(out, seqBuf...)
	out = append(out, f.Nonce...)
	out = append(out, f.Ciphertext...)
	return out
}

// EncodeLegacy builds the wire bytes for a legacy HMAC-then-ciphertext
// frame: ciphertext is appended after the header, HMAC after that.
func EncodeLegacy(f Frame) []byte {
	out := make([]byte, 0, frameHeaderLen+len(f.Ciphertext)+len(f.HMAC))
	out = append(out, f.Version)
	seqBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBuf, f.Sequence)
	out = append(out, seqBuf...)
	out = append(out, f.Nonce...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.HMAC...)
	return out
}

// DecodeHeader parses version, sequence, and nonce from the front of buf,
// returning the remaining bytes (ciphertext, plus HMAC suffix for legacy
// frames — caller slices based on mode).
func DecodeHeader(buf []byte) (version uint8, seq uint64, nonce []byte, rest []byte, err error) {
	if len(buf) < frameHeaderLen {
		return 0, 0, nil, nil, errBadFormat("frame shorter than header")
	}
	version = buf[0]
	seq = binary.BigEndian.Uint64(buf[1:9])
	nonce = buf[9:frameHeaderLen]
	rest = buf[frameHeaderLen:]
	return version, seq, nonce, rest, nil
}

// SealAEAD authenticates and encrypts plaintext into a ready-to-send
// frame under the given key, sequence, and random nonce.
func SealAEAD(version uint8, seq uint64, encKey, plaintext []byte) ([]byte, error) {
	nonce, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	ct, err := crypto.AEADEncrypt(encKey, nonce, aad(version, seq), plaintext)
	if err != nil {
		return nil, err
	}
	return EncodeAEAD(Frame{Version: version, Sequence: seq, Nonce: nonce, Ciphertext: ct}), nil
}

// OpenAEAD decodes and authenticates a wire frame, returning the
// plaintext, the parsed sequence number, and the supported-version check
// result.
func OpenAEAD(encKey []byte, buf []byte) (plaintext []byte, seq uint64, err error) {
	version, seq, nonce, ct, err := DecodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	if version != ProtocolVersion {
		return nil, seq, errUnsupportedVersion(version)
	}
	pt, err := crypto.AEADDecrypt(encKey, nonce, aad(version, seq), ct)
	if err != nil {
		return nil, seq, err
	}
	return pt, seq, nil
}

// SealLegacy encrypts with AES-256-CBC and appends an encrypt-then-MAC
// HMAC-SHA-256 tag computed over version||sequence||nonce||ciphertext, so
// the MAC can be verified before any decryption is attempted.
func SealLegacy(version uint8, seq uint64, encKey, macKey, plaintext []byte) ([]byte, error) {
	iv, err := crypto.RandomNonce()
	if err != nil {
		return nil, err
	}
	ct, err := crypto.CBCEncrypt(encKey, iv[:16], plaintext)
	if err != nil {
		return nil, err
	}
	header := aad(version, seq)
	macInput := append(append(append([]byte{}, header...), iv...), ct...)
	mac := crypto.HMACSHA256(macKey, macInput)
	return EncodeLegacy(Frame{Version: version, Sequence: seq, Nonce: iv, Ciphertext: ct, HMAC: mac}), nil
}

// OpenLegacy verifies the HMAC (constant time) before attempting CBC
// decryption, per spec.md 4.2's encrypt-then-MAC requirement.
func OpenLegacy(encKey, macKey []byte, buf []byte) (plaintext []byte, seq uint64, err error) {
	version, seq, iv, rest, err := DecodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	if version != ProtocolVersion {
		return nil, seq, errUnsupportedVersion(version)
	}
	if len(rest) < 32 {
		return nil, seq, errBadFormat("legacy frame missing hmac tag")
	}
	ct := rest[:len(rest)-32]
	tag := rest[len(rest)-32:]

	header := aad(version, seq)
	macInput := append(append(append([]byte{}, header...), iv...), ct...)
	if !crypto.VerifyHMACSHA256(macKey, macInput, tag) {
		return nil, seq, errAuthFail("legacy hmac mismatch")
	}
	pt, err := crypto.CBCDecrypt(encKey, iv[:16], ct)
	if err != nil {
		return nil, seq, err
	}
	return pt, seq, nil
}
