package crypto

import "encoding/hex"

// HexEncode and HexDecode wrap encoding/hex for the digest/key textual
// representations used across the wire protocol (spec.md 3 file hash,
// 4.2 frame fields).
func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
