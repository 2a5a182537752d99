package ctrcia

import (
	"encoding/binary"
	"fmt"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

// NCCHHeaderSize is the fixed size of an NCCH header.
const NCCHHeaderSize = 0x200

// MediaUnitSize is the scaling factor applied to every NCCH offset/size
// field that is declared "in media units."
const MediaUnitSize = 512

// NCCHFlags is derived from the flags byte array at NCCH header offset
// 0x188.
type NCCHFlags struct {
	CryptoMethod   byte // flags[3]: 0x00 original, 0x01 7.x, 0x0A Secure3, 0x0B Secure4
	FixedCryptoKey bool // flags[7] bit 0
	NoMountRomFS   bool // flags[7] bit 1, unrelated to crypto, preserved verbatim
	NoCrypto       bool // flags[7] bit 2
	UsesSeed       bool // flags[7] bit 5
}

// NCCHHeader is the parsed form of the 0x200-byte NCCH header. Only the
// fields the core's crypto and region-offset logic needs are kept; every
// other header byte is preserved verbatim in Raw and rewritten back on
// output.
type NCCHHeader struct {
	Raw [NCCHHeaderSize]byte

	PartitionID uint64
	ProgramID   uint64
	Version     uint16
	SeedCheck   uint32

	CryptoMethod byte
	Flags        NCCHFlags

	ExHeaderSize uint32 // bytes

	ExeFSOffset, ExeFSSize uint32 // media units
	RomFSOffset, RomFSSize uint32 // media units
}

// ErrNotNCCH is returned by ParseNCCHHeader when the magic doesn't match;
// callers use it to detect non-NCCH content that must be passed through
// verbatim per spec.md Testable Property #7.
var ErrNotNCCH = fmt.Errorf("ctrcia: not an NCCH partition")

// ParseNCCHHeader parses a 0x200-byte buffer as an NCCH header.
func ParseNCCHHeader(buf []byte) (*NCCHHeader, error) {
	if len(buf) < NCCHHeaderSize {
		return nil, &Error{Kind: FormatError, Message: "NCCH header truncated"}
	}

	h := &NCCHHeader{}
	copy(h.Raw[:], buf[:NCCHHeaderSize])

	if string(buf[0x100:0x104]) != "NCCH" {
		return nil, ErrNotNCCH
	}

	h.PartitionID = binary.LittleEndian.Uint64(buf[0x108:0x110])
	h.ProgramID = binary.LittleEndian.Uint64(buf[0x118:0x120])
	h.Version = binary.LittleEndian.Uint16(buf[0x112:0x114])
	h.SeedCheck = binary.BigEndian.Uint32(buf[0x1BF:0x1C3])

	flagsByte3 := buf[0x18B]
	flagsByte7 := buf[0x18F]
	h.CryptoMethod = flagsByte3
	h.Flags = NCCHFlags{
		CryptoMethod:   flagsByte3,
		FixedCryptoKey: flagsByte7&0x01 != 0,
		NoMountRomFS:   flagsByte7&0x02 != 0,
		NoCrypto:       flagsByte7&0x04 != 0,
		UsesSeed:       flagsByte7&0x20 != 0,
	}

	h.ExHeaderSize = binary.LittleEndian.Uint32(buf[0x180:0x184])

	h.ExeFSOffset = binary.LittleEndian.Uint32(buf[0x1A0:0x1A4])
	h.ExeFSSize = binary.LittleEndian.Uint32(buf[0x1A4:0x1A8])
	h.RomFSOffset = binary.LittleEndian.Uint32(buf[0x1B0:0x1B4])
	h.RomFSSize = binary.LittleEndian.Uint32(buf[0x1B4:0x1B8])

	return h, nil
}

// KeyY returns the NCCH's raw KeyY: the first 16 bytes of the header's
// RSA signature field.
func (h *NCCHHeader) KeyY() ctrutil.Key128 {
	var k ctrutil.Key128
	copy(k[:], h.Raw[0:16])
	return k
}

// isSystemFixedKey reports whether a fixed-crypto-key NCCH should use the
// system fixed key rather than the all-zero key, based on bit 4 of byte 3
// of the big-endian program ID — mirroring decrypt/cia.rs's `tid[3] & 16`
// check.
func (h *NCCHHeader) isSystemFixedKey() bool {
	var idBE [8]byte
	binary.BigEndian.PutUint64(idBE[:], h.ProgramID)
	return idBE[3]&0x10 != 0
}

// rewriteFlags implements spec.md §4.8 step 8 per SPEC_FULL.md's Open
// Question resolution: flags[7] = (flags[7] & 0x02) | 0x04, and the
// crypto-method byte (offset 0x18B) is zeroed.
func (h *NCCHHeader) rewriteFlags() {
	h.Raw[0x18F] = (h.Raw[0x18F] & 0x02) | 0x04
	h.Raw[0x18B] = 0x00

	h.Flags.FixedCryptoKey = false
	h.Flags.NoCrypto = true
	h.Flags.UsesSeed = false
	h.Flags.CryptoMethod = 0
	h.CryptoMethod = 0
}

// ncchSection identifies one of the three AES-CTR-counter-bearing regions
// inside an NCCH, per spec.md §4.8 step 3.
type ncchSection byte

const (
	sectionExHeader ncchSection = 0x01
	sectionExeFS    ncchSection = 0x02
	sectionRomFS    ncchSection = 0x03
)

// baseCounter builds the AES-CTR base counter for a region:
// partition_id_be(8) || region_tag(1) || zeros(7).
func (h *NCCHHeader) baseCounter(section ncchSection) [16]byte {
	var ctr [16]byte
	binary.BigEndian.PutUint64(ctr[0:8], h.PartitionID)
	ctr[8] = byte(section)
	return ctr
}

// counterAt advances a base counter by mediaUnitOffset*0x200/16 = *0x20
// blocks, per spec.md §4.8 step 3.
func counterAt(base [16]byte, mediaUnitOffset uint32) [16]byte {
	return advanceCounter(base, uint64(mediaUnitOffset)*0x20)
}

// counterAtByteOffset advances a base counter to the AES block containing
// byteOffset, i.e. by byteOffset/16 blocks. Used for ExeFS file bodies,
// whose offsets are byte-precise rather than media-unit-aligned.
func counterAtByteOffset(base [16]byte, byteOffset int64) [16]byte {
	return advanceCounter(base, uint64(byteOffset)/16)
}

// advanceCounter adds n to a 128-bit big-endian counter with wraparound.
func advanceCounter(ctr [16]byte, n uint64) [16]byte {
	var add ctrutil.Key128
	binary.BigEndian.PutUint64(add[8:], n)
	result := ctrutil.Add128(ctrutil.Key128(ctr), add)
	return [16]byte(result)
}
