package ctrcia

import (
	"testing"
)

func TestParseNCCHHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, NCCHHeaderSize)
	if _, err := ParseNCCHHeader(buf); err != ErrNotNCCH {
		t.Errorf("ParseNCCHHeader() error = %v, want ErrNotNCCH", err)
	}
}

func TestParseNCCHHeaderFields(t *testing.T) {
	buf := make([]byte, NCCHHeaderSize)
	copy(buf[0x100:0x104], "NCCH")
	buf[0x18B] = 0x0A             // crypto method
	buf[0x18F] = 0x01 | 0x20      // FixedCryptoKey, UsesSeed
	buf[0x1A0] = 0x10             // ExeFSOffset low byte
	buf[0x1A4] = 0x20             // ExeFSSize low byte

	h, err := ParseNCCHHeader(buf)
	if err != nil {
		t.Fatalf("ParseNCCHHeader: %v", err)
	}
	if h.CryptoMethod != 0x0A {
		t.Errorf("CryptoMethod = %#x, want 0x0A", h.CryptoMethod)
	}
	if !h.Flags.FixedCryptoKey || !h.Flags.UsesSeed {
		t.Errorf("Flags = %+v, want FixedCryptoKey and UsesSeed set", h.Flags)
	}
	if h.ExeFSOffset != 0x10 || h.ExeFSSize != 0x20 {
		t.Errorf("ExeFSOffset/Size = %d/%d, want 16/32", h.ExeFSOffset, h.ExeFSSize)
	}
}

func TestRewriteFlags(t *testing.T) {
	buf := make([]byte, NCCHHeaderSize)
	copy(buf[0x100:0x104], "NCCH")
	buf[0x18B] = 0x0A                     // crypto method, must be zeroed
	buf[0x18F] = 0x01 | 0x02 | 0x08 | 0x20 // FixedCryptoKey, NoMountRomFS (preserved), unrelated bit, UsesSeed

	h, err := ParseNCCHHeader(buf)
	if err != nil {
		t.Fatalf("ParseNCCHHeader: %v", err)
	}

	h.rewriteFlags()

	if h.Raw[0x18B] != 0 {
		t.Errorf("crypto method byte = %#x, want 0", h.Raw[0x18B])
	}
	if h.Raw[0x18F] != 0x06 {
		t.Errorf("flags byte = %#x, want 0x06 (NoMountRomFS preserved, NoCrypto set)", h.Raw[0x18F])
	}
	if h.Flags.FixedCryptoKey || h.Flags.UsesSeed || !h.Flags.NoCrypto {
		t.Errorf("Flags after rewrite = %+v", h.Flags)
	}
}

func TestCounterAtAdvancesByMediaUnit(t *testing.T) {
	var base [16]byte
	base[8] = byte(sectionExeFS)

	advanced := counterAt(base, 1)
	want := advanceCounter(base, 0x20)
	if advanced != want {
		t.Errorf("counterAt(base, 1) = %x, want %x", advanced, want)
	}
}

func TestAdvanceCounterWraparound(t *testing.T) {
	var ctr [16]byte
	for i := range ctr {
		ctr[i] = 0xFF
	}
	got := advanceCounter(ctr, 1)
	if got != ([16]byte{}) {
		t.Errorf("advanceCounter(all-FF, 1) = %x, want all-zero", got)
	}
}

func TestIsSystemFixedKey(t *testing.T) {
	h := &NCCHHeader{ProgramID: 0x0004000000033500}
	if h.isSystemFixedKey() {
		t.Error("unexpected system fixed key for an ordinary title id")
	}

	h.ProgramID = 0x0004001000033500 // byte 3 (big-endian) has bit 0x10 set
	if !h.isSystemFixedKey() {
		t.Error("expected system fixed key when program id byte 3 has bit 0x10 set")
	}
}
