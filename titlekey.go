package ctrcia

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ctrTitleKeySecret and ctrDefaultTitleKeyPassword are tool-internal
// constants used to derive a synthetic title key when a real one is not
// available; they are not Nintendo secrets.
const (
	ctrTitleKeySecret           = "fd040105060b111c2d49"
	ctrDefaultTitleKeyPassword  = "mypass"
	titleKeyPBKDF2Iterations    = 20
	titleKeyPBKDF2KeyLen        = 16
)

// stripHexPrefix removes a leading "0x"/"0X" from a hex string, if present.
func stripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// GenerateKey derives a synthetic 16-byte title key from a title ID and a
// password using PBKDF2-HMAC-SHA1, the way titles without an assigned
// ticket on the CDN are keyed by the hobbyist tooling this is grounded on.
// If password is "", ctrDefaultTitleKeyPassword is used.
//
// Quirk preserved intentionally: after stripping an optional "0x" prefix,
// the first two hex characters of the title ID are always dropped before
// building the PBKDF2 salt material.
func GenerateKey(titleID string, password string) ([16]byte, error) {
	if password == "" {
		password = ctrDefaultTitleKeyPassword
	}

	tid := stripHexPrefix(titleID)
	if len(tid) < 2 {
		return [16]byte{}, fmt.Errorf("titlekey: title id too short: %q", titleID)
	}
	tid = tid[2:]

	secretBytes, err := hex.DecodeString(ctrTitleKeySecret + tid)
	if err != nil {
		return [16]byte{}, fmt.Errorf("titlekey: invalid internal secret: %w", err)
	}
	salt := md5.Sum(secretBytes)

	derived := pbkdf2.Key([]byte(password), salt[:], titleKeyPBKDF2Iterations, titleKeyPBKDF2KeyLen, sha1.New)

	var out [16]byte
	copy(out[:], derived)
	return out, nil
}

// EncryptTitleKey wraps a plaintext title key the way a real ticket would,
// under commonKeys[0] with an IV built from the title ID: the hex string
// (after stripping only "0x", keeping all digits this time) right-padded
// with zeros to 32 hex characters.
func EncryptTitleKey(keys KeyProvider, titleID string, key [16]byte) ([16]byte, error) {
	tid := stripHexPrefix(titleID)
	for len(tid) < 32 {
		tid += "0"
	}
	if len(tid) > 32 {
		tid = tid[:32]
	}

	ivBytes, err := hex.DecodeString(tid)
	if err != nil {
		return [16]byte{}, fmt.Errorf("titlekey: invalid title id: %w", err)
	}

	commonKey, err := keys.CommonKey(0)
	if err != nil {
		return [16]byte{}, err
	}

	block, err := aes.NewCipher(commonKey[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("titlekey: cipher: %w", err)
	}

	var out [16]byte
	cipher.NewCBCEncrypter(block, ivBytes).CryptBlocks(out[:], key[:])
	return out, nil
}

// GenerateTitleKey is the convenience form used when packing a title with
// no ticket available: it derives a synthetic key and wraps it in one call.
func GenerateTitleKey(keys KeyProvider, titleID string, password string) (plain, encrypted [16]byte, err error) {
	plain, err = GenerateKey(titleID, password)
	if err != nil {
		return [16]byte{}, [16]byte{}, err
	}
	encrypted, err = EncryptTitleKey(keys, titleID, plain)
	return plain, encrypted, err
}
