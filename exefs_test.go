package ctrcia

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildExeFSHeader(files []ExeFSFile) []byte {
	header := make([]byte, ExeFSHeaderSize)
	for i, f := range files {
		rec := header[i*0x10 : (i+1)*0x10]
		copy(rec[:0x8], f.Name)
		binary.LittleEndian.PutUint32(rec[0x8:0xC], f.Offset)
		binary.LittleEndian.PutUint32(rec[0xC:0x10], f.Size)
	}
	return header
}

func TestParseExeFSFileTableSkipsEmptySlots(t *testing.T) {
	header := buildExeFSHeader([]ExeFSFile{
		{Name: "icon", Offset: 0, Size: smdhSize},
		{Name: ".code", Offset: smdhSize, Size: 0x1000},
	})

	files := parseExeFSFileTable(header)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Name != "icon" || files[1].Name != ".code" {
		t.Errorf("files = %+v", files)
	}
}

func TestParseExeFSWithoutIcon(t *testing.T) {
	header := buildExeFSHeader([]ExeFSFile{
		{Name: "banner", Offset: 0, Size: 0x100},
	})

	exefs, err := ParseExeFS(bytes.NewReader(header))
	if err != nil {
		t.Fatalf("ParseExeFS: %v", err)
	}
	if exefs.Icon != nil {
		t.Error("expected no icon when no icon file record is present")
	}
	if len(exefs.Files) != 1 || exefs.Files[0].Name != "banner" {
		t.Errorf("Files = %+v", exefs.Files)
	}
}

func TestParseExeFSRejectsWrongIconSize(t *testing.T) {
	header := buildExeFSHeader([]ExeFSFile{
		{Name: "icon", Offset: 0, Size: 0x10},
	})

	if _, err := ParseExeFS(bytes.NewReader(header)); err == nil {
		t.Error("expected an error for a mis-sized icon record")
	}
}

func TestExeFSHashReverseOrder(t *testing.T) {
	raw := make([]byte, ExeFSHeaderSize)
	hashBlockOffset := ExeFSHeaderSize - 10*0x20

	var want [0x20]byte
	for i := range want {
		want[i] = 0x42
	}
	// file record index 0's hash is stored last (reverse order: index 9 first).
	copy(raw[hashBlockOffset+9*0x20:], want[:])

	got, err := ExeFSHash(raw, 0)
	if err != nil {
		t.Fatalf("ExeFSHash: %v", err)
	}
	if !bytes.Equal(got, want[:]) {
		t.Errorf("ExeFSHash(raw, 0) = %x, want %x", got, want)
	}
}

func TestExeFSHashRejectsOutOfRangeIndex(t *testing.T) {
	raw := make([]byte, ExeFSHeaderSize)
	if _, err := ExeFSHash(raw, 10); err == nil {
		t.Error("expected an error for an out-of-range file record index")
	}
}

func TestSecondaryKeyFile(t *testing.T) {
	tests := []struct {
		name         string
		cryptoMethod byte
		want         bool
	}{
		{".code", 0x00, false},
		{".code", 0x0A, true},
		{"icon", 0x0A, false},
		{"banner", 0x0A, false},
	}
	for _, tt := range tests {
		if got := SecondaryKeyFile(tt.name, tt.cryptoMethod); got != tt.want {
			t.Errorf("SecondaryKeyFile(%q, %#x) = %v, want %v", tt.name, tt.cryptoMethod, got, tt.want)
		}
	}
}
