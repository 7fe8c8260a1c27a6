// Package session implements the peer session and secure channel of
// spec.md 4.2: session-code-derived keys, the three-message handshake,
// authenticated framing, and the replay-defense sliding window. Grounded
// on infrastructure/cryptography/chacha20/handshake's three-message shape
// and replay_window.go's bitmap design.
package session

import "sentinelfs/sferr"

const component = "session"

func errBadFormat(msg string) error {
	return sferr.New(sferr.CodeBadFormat, component, msg)
}

func errUnsupportedVersion(v uint8) error {
	return sferr.New(sferr.CodeUnsupportedVersion, component, "unsupported protocol version").
		WithDetail("version", string(rune('0'+v)))
}

func errSessionCodeMismatch() error {
	return sferr.New(sferr.CodeSessionCodeMismatch, component, "session code mismatch")
}

func errAuthFail(detail string) error {
	return sferr.New(sferr.CodeAuthFail, component, "authentication failed").WithDetail("reason", detail)
}

func errReplay(seq uint64) error {
	return sferr.New(sferr.CodeReplay, component, "replayed or too-old sequence number")
}
