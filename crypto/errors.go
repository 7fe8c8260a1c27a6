package crypto

import (
	"strconv"

	"sentinelfs/sferr"
)

const component = "crypto"

func errBadKeySize(got, want int) error {
	return sferr.New(sferr.CodeCryptoBadKeySize, component, "bad key size").
		WithDetail("got", strconv.Itoa(got)).WithDetail("want", strconv.Itoa(want))
}

func errBadNonceSize(got, want int) error {
	return sferr.New(sferr.CodeCryptoBadNonce, component, "bad nonce size").
		WithDetail("got", strconv.Itoa(got)).WithDetail("want", strconv.Itoa(want))
}

func errAuthFail() error {
	return sferr.New(sferr.CodeCryptoAuthFail, component, "authentication failed")
}

func errBadPadding() error {
	return sferr.New(sferr.CodeCryptoBadPadding, component, "invalid PKCS7 padding")
}
