package ctrcia

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CIAHeaderSize is the fixed size of a CIA header, including its 0x2000-byte
// content index bitmap.
const CIAHeaderSize = 0x2020

const ciaContentIndexSize = 0x2000

// CIAHeader is the parsed form of a CIA container's leading header.
type CIAHeader struct {
	Type            uint16
	Version         uint16
	CertChainSize   uint32
	TicketSize      uint32
	TMDSize         uint32
	MetaSize        uint32
	ContentSize     uint64
	ContentIndex    [ciaContentIndexSize]byte
}

// align64 returns the number of padding bytes needed to bring offset up to
// the next multiple of 64, the alignment every CIA section boundary uses.
func align64(offset int64) int64 {
	return (64 - offset%64) % 64
}

// ParseCIAHeader reads and parses a CIA header.
func ParseCIAHeader(r io.Reader) (*CIAHeader, error) {
	buf := make([]byte, CIAHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &Error{Kind: FormatError, Message: "cia: failed to read header", Err: err}
	}

	headerSize := binary.LittleEndian.Uint32(buf[0x00:0x04])
	if headerSize != CIAHeaderSize {
		return nil, &Error{Kind: FormatError, Message: fmt.Sprintf("cia: header size must be %d, got %d", CIAHeaderSize, headerSize)}
	}

	h := &CIAHeader{
		Type:          binary.LittleEndian.Uint16(buf[0x04:0x06]),
		Version:       binary.LittleEndian.Uint16(buf[0x06:0x08]),
		CertChainSize: binary.LittleEndian.Uint32(buf[0x08:0x0C]),
		TicketSize:    binary.LittleEndian.Uint32(buf[0x0C:0x10]),
		TMDSize:       binary.LittleEndian.Uint32(buf[0x10:0x14]),
		MetaSize:      binary.LittleEndian.Uint32(buf[0x14:0x18]),
		ContentSize:   binary.LittleEndian.Uint64(buf[0x18:0x20]),
	}
	copy(h.ContentIndex[:], buf[0x20:0x2020])

	return h, nil
}

// ContentPresent reports whether contentIndex is marked present in the
// header's bitmap: MSB-first within each byte.
func (h *CIAHeader) ContentPresent(contentIndex uint16) bool {
	byteIdx := contentIndex / 8
	bitIdx := contentIndex % 8
	if int(byteIdx) >= len(h.ContentIndex) {
		return false
	}
	return h.ContentIndex[byteIdx]&(0x80>>bitIdx) != 0
}

// SetContentPresent marks contentIndex as present or absent in the bitmap.
func (h *CIAHeader) SetContentPresent(contentIndex uint16, present bool) {
	byteIdx := contentIndex / 8
	bitIdx := contentIndex % 8
	if present {
		h.ContentIndex[byteIdx] |= 0x80 >> bitIdx
	} else {
		h.ContentIndex[byteIdx] &^= 0x80 >> bitIdx
	}
}

// WriteTo serializes the header.
func (h *CIAHeader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, CIAHeaderSize)
	binary.LittleEndian.PutUint32(buf[0x00:0x04], CIAHeaderSize)
	binary.LittleEndian.PutUint16(buf[0x04:0x06], h.Type)
	binary.LittleEndian.PutUint16(buf[0x06:0x08], h.Version)
	binary.LittleEndian.PutUint32(buf[0x08:0x0C], h.CertChainSize)
	binary.LittleEndian.PutUint32(buf[0x0C:0x10], h.TicketSize)
	binary.LittleEndian.PutUint32(buf[0x10:0x14], h.TMDSize)
	binary.LittleEndian.PutUint32(buf[0x14:0x18], h.MetaSize)
	binary.LittleEndian.PutUint64(buf[0x18:0x20], h.ContentSize)
	copy(buf[0x20:0x2020], h.ContentIndex[:])

	n, err := w.Write(buf)
	return int64(n), err
}

// CIAContentSource supplies one content's plaintext bytes and declared
// size when building a CIA, abstracting over a file on disk or an
// in-memory buffer produced by the decrypt pipeline.
type CIAContentSource interface {
	Open() (io.ReadCloser, error)
	Size() int64
}

// CIAContent pairs a content's TMD chunk record with the source it should
// be read from when writing a CIA.
type CIAContent struct {
	Chunk  ContentChunk
	Source CIAContentSource
}

// WriteCIA streams a complete CIA container to w: header, certificate
// chain, ticket, TMD, contents and an optional meta block, each padded to a
// 64-byte boundary as required by spec.md's layout invariant. certChain may
// be nil, in which case an empty (zero-length) chain is written. meta may
// be nil, in which case no meta block is declared or written.
func WriteCIA(w io.Writer, certChain []byte, ticket *Ticket, tmd *TMD, contents []CIAContent, meta []byte) error {
	ticketBuf := &countingBuffer{}
	if _, err := ticket.WriteTo(ticketBuf); err != nil {
		return fmt.Errorf("cia: failed to serialize ticket: %w", err)
	}

	tmdBuf := &countingBuffer{}
	if _, err := tmd.WriteTo(tmdBuf); err != nil {
		return fmt.Errorf("cia: failed to serialize tmd: %w", err)
	}

	header := &CIAHeader{
		Type:          0,
		Version:       0,
		CertChainSize: uint32(len(certChain)),
		TicketSize:    uint32(ticketBuf.Len()),
		TMDSize:       uint32(tmdBuf.Len()),
		MetaSize:      uint32(len(meta)),
	}
	for _, c := range contents {
		header.ContentSize += uint64(c.Chunk.Size)
		header.SetContentPresent(c.Chunk.Index, true)
	}

	if _, err := header.WriteTo(w); err != nil {
		return fmt.Errorf("cia: failed to write header: %w", err)
	}

	if err := writePadded(w, certChain); err != nil {
		return fmt.Errorf("cia: failed to write cert chain: %w", err)
	}
	if err := writePadded(w, ticketBuf.Bytes()); err != nil {
		return fmt.Errorf("cia: failed to write ticket: %w", err)
	}
	if err := writePadded(w, tmdBuf.Bytes()); err != nil {
		return fmt.Errorf("cia: failed to write tmd: %w", err)
	}

	var written int64
	for i, c := range contents {
		rc, err := c.Source.Open()
		if err != nil {
			return (&Error{Kind: IoError, Message: "cia: failed to open content", Err: err}).WithContent(i, "content")
		}
		n, err := io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return (&Error{Kind: IoError, Message: "cia: failed to write content", Err: err}).WithContent(i, "content")
		}
		written += n
	}
	if pad := align64(written); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("cia: failed to pad contents: %w", err)
		}
	}

	if len(meta) > 0 {
		if err := writePadded(w, meta); err != nil {
			return fmt.Errorf("cia: failed to write meta block: %w", err)
		}
	}

	return nil
}

func writePadded(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if pad := align64(int64(len(data))); pad > 0 {
		_, err := w.Write(make([]byte, pad))
		return err
	}
	return nil
}

// countingBuffer is a minimal io.Writer sink used to size a serialized
// section before it is copied into the final output stream.
type countingBuffer struct {
	buf []byte
}

func (b *countingBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *countingBuffer) Len() int      { return len(b.buf) }
func (b *countingBuffer) Bytes() []byte { return b.buf }

// CIAContentRegion locates one content's bytes within a CIA file.
type CIAContentRegion struct {
	Chunk  ContentChunk
	Offset int64 // absolute byte offset of the content within the CIA
}

// CIAReader is a parsed CIA file opened for random access, as produced by
// ReadCIA. It is the basis for the decrypt pipeline, which needs to seek
// into individual contents without buffering the whole file.
type CIAReader struct {
	Header    *CIAHeader
	CertChain []byte
	Ticket    *Ticket
	TMD       *TMD
	Contents  []CIAContentRegion
	// Meta holds the raw meta block (SMDH icon + dependency list + core
	// version, per spec.md §3/§4.6), if the CIA declares one. Nil when
	// absent; the tool treats it as an opaque pass-through blob.
	Meta []byte

	src io.ReaderAt
}

// OpenContent returns a reader over one content's raw (still encrypted, if
// applicable) bytes.
func (c *CIAReader) OpenContent(region CIAContentRegion) io.Reader {
	return io.NewSectionReader(c.src, region.Offset, int64(region.Chunk.Size))
}

// ReadCIA parses a complete CIA file for random access. src must also
// implement io.ReaderAt (an *os.File does).
func ReadCIA(src io.ReadSeeker) (*CIAReader, error) {
	ra, ok := src.(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("cia: source must implement io.ReaderAt")
	}

	header, err := ParseCIAHeader(io.NewSectionReader(ra, 0, CIAHeaderSize))
	if err != nil {
		return nil, err
	}

	offset := int64(CIAHeaderSize)
	offset += align64(offset)

	certChain := make([]byte, header.CertChainSize)
	if _, err := io.ReadFull(io.NewSectionReader(ra, offset, int64(header.CertChainSize)), certChain); err != nil {
		return nil, &Error{Kind: FormatError, Message: "cia: failed to read cert chain", Err: err}
	}
	offset += int64(header.CertChainSize)
	offset += align64(offset)

	ticket, err := ParseTicket(io.NewSectionReader(ra, offset, int64(header.TicketSize)))
	if err != nil {
		return nil, fmt.Errorf("cia: %w", err)
	}
	offset += int64(header.TicketSize)
	offset += align64(offset)

	tmd, err := ParseTMD(io.NewSectionReader(ra, offset, int64(header.TMDSize)))
	if err != nil {
		return nil, fmt.Errorf("cia: %w", err)
	}
	offset += int64(header.TMDSize)
	offset += align64(offset)

	regions := make([]CIAContentRegion, 0, len(tmd.Contents))
	for _, chunk := range tmd.Contents {
		if !header.ContentPresent(chunk.Index) {
			continue
		}
		regions = append(regions, CIAContentRegion{Chunk: chunk, Offset: offset})
		offset += int64(chunk.Size)
	}
	offset += align64(offset)

	var meta []byte
	if header.MetaSize > 0 {
		meta = make([]byte, header.MetaSize)
		if _, err := io.ReadFull(io.NewSectionReader(ra, offset, int64(header.MetaSize)), meta); err != nil {
			return nil, &Error{Kind: FormatError, Message: "cia: failed to read meta block", Err: err}
		}
	}

	return &CIAReader{
		Header:    header,
		CertChain: certChain,
		Ticket:    ticket,
		TMD:       tmd,
		Contents:  regions,
		Meta:      meta,
		src:       ra,
	}, nil
}
