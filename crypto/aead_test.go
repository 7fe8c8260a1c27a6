package crypto

import (
	"bytes"
	"testing"
)

func TestAEADRoundTrip(t *testing.T) {
	key, _ := RandomKey()
	nonce, _ := RandomNonce()
	aad := []byte("frame-aad")

	for _, msg := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0xAB}, 5000)} {
		ct, err := AEADEncrypt(key, nonce, aad, msg)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		pt, err := AEADDecrypt(key, nonce, aad, ct)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(pt, msg) {
			t.Fatalf("round trip mismatch: got %x want %x", pt, msg)
		}
	}
}

func TestAEADTamperDetection(t *testing.T) {
	key, _ := RandomKey()
	nonce, _ := RandomNonce()
	aad := []byte("aad")
	ct, err := AEADEncrypt(key, nonce, aad, []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	otherKey, _ := RandomKey()
	otherNonce, _ := RandomNonce()

	cases := map[string]func() ([]byte, []byte, []byte, []byte){
		"tampered ciphertext": func() ([]byte, []byte, []byte, []byte) {
			tampered := append([]byte(nil), ct...)
			tampered[0] ^= 0xFF
			return key, nonce, aad, tampered
		},
		"wrong key": func() ([]byte, []byte, []byte, []byte) {
			return otherKey, nonce, aad, ct
		},
		"wrong nonce": func() ([]byte, []byte, []byte, []byte) {
			return key, otherNonce, aad, ct
		},
		"wrong aad": func() ([]byte, []byte, []byte, []byte) {
			return key, nonce, []byte("different-aad"), ct
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			k, n, a, c := setup()
			pt, err := AEADDecrypt(k, n, a, c)
			if err == nil {
				t.Fatal("expected auth failure")
			}
			if pt != nil {
				t.Fatal("expected nil plaintext on auth failure, got partial data")
			}
		})
	}
}

func TestAEADBadKeySize(t *testing.T) {
	if _, err := AEADEncrypt([]byte("short"), make([]byte, NonceSize), nil, []byte("x")); err == nil {
		t.Fatal("expected bad key size error")
	}
}
