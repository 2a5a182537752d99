package ctrcia

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestCIAHeaderContentPresentBitmap(t *testing.T) {
	h := &CIAHeader{}
	h.SetContentPresent(0, true)
	h.SetContentPresent(15, true)

	if !h.ContentPresent(0) || !h.ContentPresent(15) {
		t.Error("expected indices 0 and 15 to be marked present")
	}
	if h.ContentPresent(1) || h.ContentPresent(16) {
		t.Error("unexpected index marked present")
	}

	h.SetContentPresent(0, false)
	if h.ContentPresent(0) {
		t.Error("expected index 0 to be cleared")
	}
}

func TestCIAHeaderRoundTrip(t *testing.T) {
	h := &CIAHeader{
		CertChainSize: 0xA00,
		TicketSize:    0x350,
		TMDSize:       0x9C4,
		ContentSize:   0x123456,
	}
	h.SetContentPresent(0, true)

	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ParseCIAHeader(&buf)
	if err != nil {
		t.Fatalf("ParseCIAHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", *got, *h)
	}
}

type memContentSource struct {
	data []byte
}

func (m *memContentSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *memContentSource) Size() int64 {
	return int64(len(m.data))
}

func TestWriteCIAThenReadCIA(t *testing.T) {
	ticket := &Ticket{Issuer: "Root-CA00000003-XS0000000c", TitleID: 0x0004000000033500}
	content0 := []byte("hello, this is content zero")
	content1 := []byte("and this is a second, longer content blob")

	tmd := &TMD{
		Issuer:  "Root-CA00000003-CP0000000b",
		TitleID: 0x0004000000033500,
		Contents: []ContentChunk{
			{ID: 0, Index: 0, Size: uint64(len(content0))},
			{ID: 1, Index: 1, Size: uint64(len(content1))},
		},
	}

	contents := []CIAContent{
		{Chunk: tmd.Contents[0], Source: &memContentSource{data: content0}},
		{Chunk: tmd.Contents[1], Source: &memContentSource{data: content1}},
	}

	certChain := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	var buf bytes.Buffer
	if err := WriteCIA(&buf, certChain, ticket, tmd, contents, nil); err != nil {
		t.Fatalf("WriteCIA: %v", err)
	}

	tmp, err := os.CreateTemp("", "ctrcia-cia-test-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	cia, err := ReadCIA(tmp)
	if err != nil {
		t.Fatalf("ReadCIA: %v", err)
	}

	if !bytes.Equal(cia.CertChain, certChain) {
		t.Errorf("CertChain = %x, want %x", cia.CertChain, certChain)
	}
	if cia.Ticket.TitleID != ticket.TitleID {
		t.Errorf("Ticket.TitleID = %#x, want %#x", cia.Ticket.TitleID, ticket.TitleID)
	}
	if len(cia.Contents) != 2 {
		t.Fatalf("got %d content regions, want 2", len(cia.Contents))
	}

	got0, err := io.ReadAll(cia.OpenContent(cia.Contents[0]))
	if err != nil {
		t.Fatalf("OpenContent(0): %v", err)
	}
	if !bytes.Equal(got0, content0) {
		t.Errorf("content 0 = %q, want %q", got0, content0)
	}

	got1, err := io.ReadAll(cia.OpenContent(cia.Contents[1]))
	if err != nil {
		t.Fatalf("OpenContent(1): %v", err)
	}
	if !bytes.Equal(got1, content1) {
		t.Errorf("content 1 = %q, want %q", got1, content1)
	}
}

func TestWriteCIAThenReadCIAWithMetaBlock(t *testing.T) {
	ticket := &Ticket{Issuer: "Root-CA00000003-XS0000000c", TitleID: 0x0004000000033500}
	content0 := []byte("lone content")

	tmd := &TMD{
		Issuer:  "Root-CA00000003-CP0000000b",
		TitleID: 0x0004000000033500,
		Contents: []ContentChunk{
			{ID: 0, Index: 0, Size: uint64(len(content0))},
		},
	}

	contents := []CIAContent{
		{Chunk: tmd.Contents[0], Source: &memContentSource{data: content0}},
	}

	meta := bytes.Repeat([]byte{0x5A}, 0x3AC0)

	var buf bytes.Buffer
	if err := WriteCIA(&buf, nil, ticket, tmd, contents, meta); err != nil {
		t.Fatalf("WriteCIA: %v", err)
	}

	tmp, err := os.CreateTemp("", "ctrcia-cia-meta-test-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	cia, err := ReadCIA(tmp)
	if err != nil {
		t.Fatalf("ReadCIA: %v", err)
	}

	if cia.Header.MetaSize != uint32(len(meta)) {
		t.Errorf("MetaSize = %d, want %d", cia.Header.MetaSize, len(meta))
	}
	if !bytes.Equal(cia.Meta, meta) {
		t.Error("meta block did not round trip")
	}
}

func TestAlign64(t *testing.T) {
	tests := []struct{ offset, want int64 }{
		{0, 0},
		{1, 63},
		{63, 1},
		{64, 0},
		{65, 63},
	}
	for _, tt := range tests {
		if got := align64(tt.offset); got != tt.want {
			t.Errorf("align64(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}
