package ctrcia

import (
	"bytes"
	"testing"
)

func TestTMDRoundTrip(t *testing.T) {
	original := &TMD{
		Issuer:        "Root-CA00000003-CP0000000b",
		SystemVersion: 0x0004013000001302,
		TitleID:       0x0004000000033500,
		TitleType:     0x00040000,
		TitleVersion:  16,
		Contents: []ContentChunk{
			{ID: 0x00000000, Index: 0, Type: ContentTypeEncrypted, Size: 0x1000, Hash: [32]byte{0x01}},
			{ID: 0x00000001, Index: 1, Type: ContentTypeEncrypted | ContentTypeOptional, Size: 0x2000, Hash: [32]byte{0x02}},
		},
	}

	var buf bytes.Buffer
	if _, err := original.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ParseTMD(&buf)
	if err != nil {
		t.Fatalf("ParseTMD: %v", err)
	}

	if got.TitleID != original.TitleID {
		t.Errorf("TitleID = %#x, want %#x", got.TitleID, original.TitleID)
	}
	if got.TitleVersion != original.TitleVersion {
		t.Errorf("TitleVersion = %d, want %d", got.TitleVersion, original.TitleVersion)
	}
	if len(got.Contents) != len(original.Contents) {
		t.Fatalf("got %d contents, want %d", len(got.Contents), len(original.Contents))
	}
	for i := range original.Contents {
		if got.Contents[i] != original.Contents[i] {
			t.Errorf("Contents[%d] = %+v, want %+v", i, got.Contents[i], original.Contents[i])
		}
	}
}

func TestContentTypeFlagHas(t *testing.T) {
	flag := ContentTypeEncrypted | ContentTypeOptional
	if !flag.Has(ContentTypeEncrypted) {
		t.Error("expected ContentTypeEncrypted to be set")
	}
	if flag.Has(ContentTypeShared) {
		t.Error("did not expect ContentTypeShared to be set")
	}
}

func TestRehashAppliesByContentID(t *testing.T) {
	tmd := &TMD{Contents: []ContentChunk{
		{ID: 0x10, Hash: [32]byte{0xAA}},
		{ID: 0x20, Hash: [32]byte{0xBB}},
	}}

	newHash := [32]byte{0xCC}
	tmd.Rehash(map[uint32][32]byte{0x20: newHash})

	if tmd.Contents[0].Hash != [32]byte{0xAA} {
		t.Error("content 0x10's hash should be untouched")
	}
	if tmd.Contents[1].Hash != newHash {
		t.Error("content 0x20's hash should have been replaced")
	}
}

func TestVerifyContentInfoHashesDetectsMismatch(t *testing.T) {
	tmd := &TMD{Contents: []ContentChunk{
		{ID: 0, Index: 0, Size: 0x100},
	}}

	var buf bytes.Buffer
	if _, err := tmd.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	if _, err := ParseTMD(&buf); err != nil {
		t.Fatalf("ParseTMD: %v", err)
	}

	infoRecords := make([]byte, tmdInfoRecordCount*tmdInfoRecordSize)
	chunkRecords := make([]byte, tmdChunkRecordSize)
	badHash := make([]byte, 32)

	if err := VerifyContentInfoHashes(infoRecords, chunkRecords, badHash); err == nil {
		t.Error("expected a hash mismatch error")
	}
}
