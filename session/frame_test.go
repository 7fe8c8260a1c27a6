package session

import (
	"bytes"
	"testing"

	"sentinelfs/crypto"
)

func TestSealOpenAEADRoundTrip(t *testing.T) {
	key, err := crypto.RandomKey()
	if err != nil {
		t.Fatalf("RandomKey: %v", err)
	}
	plaintext := []byte("delta chunk payload")

	frame, err := SealAEAD(ProtocolVersion, 42, key, plaintext)
	if err != nil {
		t.Fatalf("SealAEAD: %v", err)
	}
	got, seq, err := OpenAEAD(key, frame)
	if err != nil {
		t.Fatalf("OpenAEAD: %v", err)
	}
	if seq != 42 {
		t.Fatalf("seq: got %d want 42", seq)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("plaintext mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenAEADRejectsTamperedCiphertext(t *testing.T) {
	key, _ := crypto.RandomKey()
	frame, err := SealAEAD(ProtocolVersion, 1, key, []byte("payload"))
	if err != nil {
		t.Fatalf("SealAEAD: %v", err)
	}
	frame[len(frame)-1] ^= 0xFF
	if _, _, err := OpenAEAD(key, frame); err == nil {
		t.Fatal("expected tamper detection")
	}
}

func TestOpenAEADRejectsTamperedSequence(t *testing.T) {
	key, _ := crypto.RandomKey()
	frame, err := SealAEAD(ProtocolVersion, 1, key, []byte("payload"))
	if err != nil {
		t.Fatalf("SealAEAD: %v", err)
	}
	frame[8] ^= 0xFF // flip a byte in the 8-byte sequence field
	if _, _, err := OpenAEAD(key, frame); err == nil {
		t.Fatal("expected tamper detection on sequence (authenticated data)")
	}
}

func TestSealOpenLegacyRoundTrip(t *testing.T) {
	encKey, _ := crypto.RandomKey()
	macKey, _ := crypto.RandomKey()
	plaintext := []byte("legacy payload, multiple of no particular size")

	frame, err := SealLegacy(ProtocolVersion, 7, encKey, macKey, plaintext)
	if err != nil {
		t.Fatalf("SealLegacy: %v", err)
	}
	got, seq, err := OpenLegacy(encKey, macKey, frame)
	if err != nil {
		t.Fatalf("OpenLegacy: %v", err)
	}
	if seq != 7 {
		t.Fatalf("seq: got %d want 7", seq)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("plaintext mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenLegacyRejectsBadMAC(t *testing.T) {
	encKey, _ := crypto.RandomKey()
	macKey, _ := crypto.RandomKey()
	frame, err := SealLegacy(ProtocolVersion, 1, encKey, macKey, []byte("payload"))
	if err != nil {
		t.Fatalf("SealLegacy: %v", err)
	}
	frame[len(frame)-1] ^= 0xFF
	if _, _, err := OpenLegacy(encKey, macKey, frame); err == nil {
		t.Fatal("expected MAC verification failure")
	}
}

func TestOpenLegacyRejectsWrongEncKeyAfterMACPasses(t *testing.T) {
	encKey, _ := crypto.RandomKey()
	macKey, _ := crypto.RandomKey()
	otherEncKey, _ := crypto.RandomKey()
	frame, err := SealLegacy(ProtocolVersion, 1, encKey, macKey, []byte("payload that is block aligned!!"))
	if err != nil {
		t.Fatalf("SealLegacy: %v", err)
	}
	if _, _, err := OpenLegacy(otherEncKey, macKey, frame); err == nil {
		t.Fatal("expected decryption failure: the MAC key matches, but the ciphertext was sealed under a different encryption key")
	}
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	if _, _, _, _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for undersized frame")
	}
}
