package ctrcia

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

// NumCommonKeys is the number of Nintendo common key slots.
const NumCommonKeys = 6

// KeyX constants for NCCH primary/secondary key scrambling. These are
// well-known 3DS platform constants (not per-title secrets) and, like
// every existing decryption tool, are embedded directly; only the six
// common keys used to unwrap title keys are treated as redistribution-
// sensitive and kept out of source (see KeyProvider).
var (
	keyX0x2C = ctrutil.Key128{0xB9, 0x8E, 0x95, 0xCE, 0xCA, 0x3E, 0x4D, 0x17, 0x1F, 0x76, 0xA9, 0x4D, 0xE9, 0x34, 0xC0, 0x53}
	keyX0x25 = ctrutil.Key128{0xCE, 0xE7, 0xD8, 0xAB, 0x30, 0xC0, 0x0D, 0xAE, 0x85, 0x0E, 0xF5, 0xE3, 0x82, 0xAC, 0x5A, 0xF3}
	keyX0x18 = ctrutil.Key128{0x82, 0xE9, 0xC9, 0xBE, 0xBF, 0xB8, 0xBD, 0xB8, 0x75, 0xEC, 0xC0, 0xA0, 0x7D, 0x47, 0x43, 0x74}
	keyX0x1B = ctrutil.Key128{0x45, 0xAD, 0x04, 0x95, 0x39, 0x92, 0xC7, 0xC8, 0x93, 0x72, 0x4A, 0x9A, 0x7B, 0xCE, 0x61, 0x82}

	// fixedSystemKey is used when an NCCH declares FixedCryptoKey and the
	// title ID marks it as a system title; the all-zero key is used for
	// ordinary (non-system) fixed-key content.
	zeroKey        ctrutil.Key128
	fixedSystemKey = ctrutil.Key128{0x52, 0x7C, 0xE6, 0x30, 0xA9, 0xCA, 0x30, 0x5F, 0x36, 0x96, 0xF3, 0xCD, 0xE9, 0x54, 0x19, 0x4B}

	keysBySlot = [4]ctrutil.Key128{keyX0x2C, keyX0x25, keyX0x18, keyX0x1B}
)

// cryptoMethodSlot maps an NCCH crypto-method byte to an index into
// keysBySlot, following decrypt/cia.rs's get_crypto_key.
func cryptoMethodSlot(method byte) int {
	switch method {
	case 0x01:
		return 1
	case 0x0A:
		return 2
	case 0x0B:
		return 3
	default:
		return 0
	}
}

// KeyProvider supplies every secret the core needs: the six Nintendo common
// keys (never embedded in source, see spec §9) and an optional SeedDB. It is
// the abstraction boundary mentioned in spec.md §9; the CLI layer is
// responsible for populating one from the environment or a key file.
type KeyProvider interface {
	CommonKey(index int) (ctrutil.Key128, error)
	SeedDB() *SeedDB
}

// StaticKeyProvider is the simplest KeyProvider: a fixed common-key table
// plus an optional SeedDB, exactly what a CLI built from an env var or key
// file would build.
type StaticKeyProvider struct {
	CommonKeys [NumCommonKeys]ctrutil.Key128
	Seeds      *SeedDB
}

func (p *StaticKeyProvider) CommonKey(index int) (ctrutil.Key128, error) {
	if index < 0 || index >= NumCommonKeys {
		return ctrutil.Key128{}, fmt.Errorf("ctrcia: common key index out of range: %d", index)
	}
	return p.CommonKeys[index], nil
}

func (p *StaticKeyProvider) SeedDB() *SeedDB {
	return p.Seeds
}

// UnwrapTitleKey decrypts an encrypted title key from a ticket:
// aes_cbc_decrypt(commonKeys[idx], titleID_be||zeros[8], encrypted).
func UnwrapTitleKey(keys KeyProvider, commonKeyIndex int, titleID uint64, encrypted [16]byte) ([16]byte, error) {
	key, err := keys.CommonKey(commonKeyIndex)
	if err != nil {
		return [16]byte{}, err
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("ctrcia: title key cipher: %w", err)
	}

	var iv [16]byte
	binary.BigEndian.PutUint64(iv[:8], titleID)

	var out [16]byte
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(out[:], encrypted[:])
	return out, nil
}

// WrapTitleKey is the inverse of UnwrapTitleKey, used when building a
// ticket from a plaintext title key supplied by the caller.
func WrapTitleKey(keys KeyProvider, commonKeyIndex int, titleID uint64, decrypted [16]byte) ([16]byte, error) {
	key, err := keys.CommonKey(commonKeyIndex)
	if err != nil {
		return [16]byte{}, err
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("ctrcia: title key cipher: %w", err)
	}

	var iv [16]byte
	binary.BigEndian.PutUint64(iv[:8], titleID)

	var out [16]byte
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out[:], decrypted[:])
	return out, nil
}

// ContentIV builds the AES-CBC IV used to decrypt an entire CDN content
// blob: content_index_be || zeros[14].
func ContentIV(contentIndex uint16) [16]byte {
	var iv [16]byte
	binary.BigEndian.PutUint16(iv[:2], contentIndex)
	return iv
}

// ncchKeys holds the primary and secondary AES keys for one NCCH partition.
type ncchKeys struct {
	Primary   ctrutil.Key128
	Secondary ctrutil.Key128
}

// deriveNCCHKeys implements spec.md §4.3's primary/secondary key derivation.
//
//	Kprim = scramble(KeyX_0x2C, KeyY = ncch_header_bytes[0..16])
//
// For crypto method 0 the secondary key equals the primary. For methods
// 0x01/0x0A/0x0B the secondary key uses KeyX_0x25/0x18/0x1B with a KeyY
// that is either the header's raw KeyY (UsesSeed clear) or a seed-derived
// KeyY (UsesSeed set, resolved via SeedDB by program ID).
func deriveNCCHKeys(header *NCCHHeader, seeds *SeedDB) (ncchKeys, error) {
	rawKeyY := header.KeyY()
	primary := ctrutil.Scramble(keyX0x2C, rawKeyY)

	if header.Flags.FixedCryptoKey {
		fixed := zeroKey
		if header.isSystemFixedKey() {
			fixed = fixedSystemKey
		}
		return ncchKeys{Primary: fixed, Secondary: fixed}, nil
	}

	if header.CryptoMethod == 0x00 && !header.Flags.UsesSeed {
		return ncchKeys{Primary: primary, Secondary: primary}, nil
	}

	keyY := rawKeyY
	if header.Flags.UsesSeed {
		derived, err := seedDerivedKeyY(rawKeyY, header, seeds)
		if err != nil {
			return ncchKeys{}, err
		}
		keyY = derived
	}

	slot := cryptoMethodSlot(header.CryptoMethod)
	secondary := ctrutil.Scramble(keysBySlot[slot], keyY)

	return ncchKeys{Primary: primary, Secondary: secondary}, nil
}

// seedDerivedKeyY implements the seed-crypto formula from
// original_source's decrypt/cia.rs::get_new_key: SHA-256(KeyY_raw_be ||
// seed)[:16], the seed looked up in the SeedDB by program ID. spec.md's
// own wording for this formula ("program_id_le" in place of the seed) does
// not match original_source, which is the tie-breaker per spec.md §9 —
// the seed itself, not the program ID, feeds the hash; see DESIGN.md.
func seedDerivedKeyY(rawKeyY ctrutil.Key128, header *NCCHHeader, seeds *SeedDB) (ctrutil.Key128, error) {
	if seeds == nil {
		return ctrutil.Key128{}, &Error{Kind: FormatError, Message: fmt.Sprintf("ctrcia: content requires a seed but no SeedDB was provided (program id %016x)", header.ProgramID)}
	}

	seed, ok := seeds.Lookup(header.ProgramID)
	if !ok {
		return ctrutil.Key128{}, &Error{Kind: FormatError, Message: fmt.Sprintf("ctrcia: no seed found for program id %016x", header.ProgramID)}
	}

	h := sha256.New()
	h.Write(rawKeyY[:])
	h.Write(seed[:])
	sum := h.Sum(nil)

	var out ctrutil.Key128
	copy(out[:], sum[:16])
	return out, nil
}

// checkSeed mirrors original_source's seed-validity check:
// SHA-256(seed || programID_le)[:4] == header.seedcheck (the title/program
// id is hashed in little-endian byte order — decrypt/cia.rs reverses the
// big-endian hex it parsed titleID from before hashing). It is
// informational only per SPEC_FULL.md's Open Question resolution.
func checkSeed(seed [16]byte, programID uint64, seedCheck uint32) bool {
	var programIDLE [8]byte
	binary.LittleEndian.PutUint64(programIDLE[:], programID)

	h := sha256.New()
	h.Write(seed[:])
	h.Write(programIDLE[:])
	sum := h.Sum(nil)

	return binary.BigEndian.Uint32(sum[:4]) == seedCheck
}
