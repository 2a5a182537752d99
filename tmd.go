package ctrcia

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ContentType bits, per a TMD content chunk record's type field.
const (
	ContentTypeEncrypted ContentTypeFlag = 0x0001
	ContentTypeDisc      ContentTypeFlag = 0x0002
	ContentTypeCFM       ContentTypeFlag = 0x0004
	ContentTypeOptional  ContentTypeFlag = 0x4000
	ContentTypeShared    ContentTypeFlag = 0x8000
)

// ContentTypeFlag is a bitmask of the flags above.
type ContentTypeFlag uint16

// Has reports whether flag is set in t.
func (t ContentTypeFlag) Has(flag ContentTypeFlag) bool {
	return t&flag != 0
}

// ContentChunk is one TMD content chunk record.
type ContentChunk struct {
	ID    uint32
	Index uint16
	Type  ContentTypeFlag
	Size  uint64
	Hash  [32]byte
}

const (
	tmdHeaderSize      = 0xC4 // TitleMetadataHeader up to and including content_info_records_hash
	tmdInfoRecordCount = 64
	tmdInfoRecordSize  = 0x24
	tmdChunkRecordSize = 0x30
)

// TMD is the parsed form of a title metadata file, with RSA signature
// verification out of scope: Signature is kept verbatim so an unmodified
// TMD can be re-emitted byte-for-byte.
type TMD struct {
	SignatureType SignatureType
	Signature     []byte

	Issuer          string
	Version         byte
	CaCrlVersion    byte
	SignerCrlVersion byte
	SystemVersion   uint64
	TitleID         uint64
	TitleType       uint32
	GroupID         uint16
	SaveDataSize    uint32
	AccessRights    uint32
	TitleVersion    uint16
	BootContent     uint16

	Contents []ContentChunk

	// CertChain holds any certificate bytes a TMD dump carries appended
	// after its content chunk records, verbatim and unverified.
	CertChain []byte
}

// ParseTMD parses a full TMD, signature header included. Content info
// record hashes are not checked here; use VerifyContentInfoHashes for that.
func ParseTMD(r io.Reader) (*TMD, error) {
	sigType, sig, err := readSignature(r)
	if err != nil {
		return nil, fmt.Errorf("tmd: %w", err)
	}

	header := make([]byte, tmdHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("tmd: failed to read header: %w", err)
	}

	issuer := string(bytes.TrimRight(header[0x00:0x40], "\x00"))

	tmd := &TMD{
		SignatureType:    sigType,
		Signature:        sig,
		Issuer:           issuer,
		Version:          header[0x40],
		CaCrlVersion:     header[0x41],
		SignerCrlVersion: header[0x42],
		SystemVersion:    binary.BigEndian.Uint64(header[0x44:0x4C]),
		TitleID:          binary.BigEndian.Uint64(header[0x4C:0x54]),
		TitleType:        binary.BigEndian.Uint32(header[0x54:0x58]),
		GroupID:          binary.BigEndian.Uint16(header[0x58:0x5A]),
		SaveDataSize:     binary.LittleEndian.Uint32(header[0x5A:0x5E]),
		AccessRights:     binary.BigEndian.Uint32(header[0x98:0x9C]),
		TitleVersion:     binary.BigEndian.Uint16(header[0x9C:0x9E]),
		BootContent:      binary.BigEndian.Uint16(header[0xA0:0xA2]),
	}
	contentCount := binary.BigEndian.Uint16(header[0x9E:0xA0])

	infoRecords := make([]byte, tmdInfoRecordCount*tmdInfoRecordSize)
	if _, err := io.ReadFull(r, infoRecords); err != nil {
		return nil, fmt.Errorf("tmd: failed to read content info records: %w", err)
	}

	chunkRecords := make([]byte, tmdChunkRecordSize*int(contentCount))
	if _, err := io.ReadFull(r, chunkRecords); err != nil {
		return nil, fmt.Errorf("tmd: failed to read content chunk records: %w", err)
	}

	contents := make([]ContentChunk, 0, contentCount)
	for i := 0; i < int(contentCount); i++ {
		rec := chunkRecords[i*tmdChunkRecordSize : (i+1)*tmdChunkRecordSize]
		c := ContentChunk{
			ID:    binary.BigEndian.Uint32(rec[0x00:0x04]),
			Index: binary.BigEndian.Uint16(rec[0x04:0x06]),
			Type:  ContentTypeFlag(binary.BigEndian.Uint16(rec[0x06:0x08])),
			Size:  binary.BigEndian.Uint64(rec[0x08:0x10]),
		}
		copy(c.Hash[:], rec[0x10:0x30])
		contents = append(contents, c)
	}
	tmd.Contents = contents

	if tail, err := io.ReadAll(r); err == nil && len(tail) > 0 {
		tmd.CertChain = tail
	}

	return tmd, nil
}

// VerifyContentInfoHashes checks the content-info-record hash chain a TMD
// carries, the way the teacher's CheckTMD used to unconditionally enforce.
// It requires re-parsing the raw info/chunk record bytes, so it takes them
// directly rather than operating on the already-decoded TMD.
func VerifyContentInfoHashes(infoRecords, chunkRecords []byte, infoRecordsHash []byte) error {
	if !bytes.Equal(sha256Hash(infoRecords), infoRecordsHash) {
		return &Error{Kind: CryptoError, Message: "tmd: invalid hash for content info records"}
	}

	for i := 0; i < tmdInfoRecordCount; i++ {
		rec := infoRecords[i*tmdInfoRecordSize : (i+1)*tmdInfoRecordSize]
		count := int(binary.BigEndian.Uint16(rec[0x02:0x04]))
		if count == 0 {
			continue
		}
		first := int(binary.BigEndian.Uint16(rec[0x00:0x02]))
		chunks := chunkRecords[tmdChunkRecordSize*first : tmdChunkRecordSize*(first+count)]
		if !bytes.Equal(sha256Hash(chunks), rec[0x04:0x24]) {
			return &Error{Kind: CryptoError, Message: fmt.Sprintf("tmd: invalid hash for content chunk records %d to %d", first, first+count-1)}
		}
	}

	return nil
}

// WriteTo serializes the TMD back to wire format, rebuilding the content
// info record hash chain from Contents (a single info record covering all
// contents, matching what every tool in this ecosystem emits for packed
// CIAs). When Signature is empty, a zero-filled RSA-2048-SHA256 block is
// emitted.
func (t *TMD) WriteTo(w io.Writer) (int64, error) {
	sigType := t.SignatureType
	if sigType == 0 {
		sigType = SignatureRSA2048SHA256
	}
	sigLen, padLen, err := signatureSize(sigType)
	if err != nil {
		return 0, err
	}
	sig := t.Signature
	if len(sig) != sigLen+padLen {
		sig = make([]byte, sigLen+padLen)
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, uint32(sigType))
	buf.Write(sig)

	header := make([]byte, tmdHeaderSize)
	copy(header[0x00:0x40], []byte(t.Issuer))
	header[0x40] = t.Version
	header[0x41] = t.CaCrlVersion
	header[0x42] = t.SignerCrlVersion
	binary.BigEndian.PutUint64(header[0x44:0x4C], t.SystemVersion)
	binary.BigEndian.PutUint64(header[0x4C:0x54], t.TitleID)
	binary.BigEndian.PutUint32(header[0x54:0x58], t.TitleType)
	binary.BigEndian.PutUint16(header[0x58:0x5A], t.GroupID)
	binary.LittleEndian.PutUint32(header[0x5A:0x5E], t.SaveDataSize)
	binary.BigEndian.PutUint32(header[0x98:0x9C], t.AccessRights)
	binary.BigEndian.PutUint16(header[0x9C:0x9E], t.TitleVersion)
	binary.BigEndian.PutUint16(header[0x9E:0xA0], uint16(len(t.Contents)))
	binary.BigEndian.PutUint16(header[0xA0:0xA2], t.BootContent)

	chunkRecords := make([]byte, tmdChunkRecordSize*len(t.Contents))
	for i, c := range t.Contents {
		rec := chunkRecords[i*tmdChunkRecordSize : (i+1)*tmdChunkRecordSize]
		binary.BigEndian.PutUint32(rec[0x00:0x04], c.ID)
		binary.BigEndian.PutUint16(rec[0x04:0x06], c.Index)
		binary.BigEndian.PutUint16(rec[0x06:0x08], uint16(c.Type))
		binary.BigEndian.PutUint64(rec[0x08:0x10], c.Size)
		copy(rec[0x10:0x30], c.Hash[:])
	}

	infoRecords := make([]byte, tmdInfoRecordCount*tmdInfoRecordSize)
	if len(t.Contents) > 0 {
		rec0 := infoRecords[0:tmdInfoRecordSize]
		binary.BigEndian.PutUint16(rec0[0x00:0x02], 0)
		binary.BigEndian.PutUint16(rec0[0x02:0x04], uint16(len(t.Contents)))
		copy(rec0[0x04:0x24], sha256Hash(chunkRecords))
	}
	copy(header[0xA4:0xC4], sha256Hash(infoRecords))

	buf.Write(header)
	buf.Write(infoRecords)
	buf.Write(chunkRecords)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Rehash recomputes every content chunk's hash from the actual (decrypted)
// content bytes, and rebuilds the info-record hash chain. This backs the
// CLI's --rehash decrypt flag; by default decrypted TMDs keep the original,
// now-stale hashes, matching what the original hashes described on disc.
func (t *TMD) Rehash(contentHashes map[uint32][32]byte) {
	for i := range t.Contents {
		if h, ok := contentHashes[t.Contents[i].ID]; ok {
			t.Contents[i].Hash = h
		}
	}
}
