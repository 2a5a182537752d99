package ctrcia

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// SignatureType identifies the algorithm used by a ticket or TMD signature,
// per the 3DS signature header.
type SignatureType uint32

const (
	SignatureRSA4096SHA1   SignatureType = 0x010000
	SignatureRSA2048SHA1   SignatureType = 0x010001
	SignatureECDSASHA1     SignatureType = 0x010002
	SignatureRSA4096SHA256 SignatureType = 0x010003
	SignatureRSA2048SHA256 SignatureType = 0x010004
	SignatureECDSASHA256   SignatureType = 0x010005
)

// signatureSize returns the (signature, padding) byte lengths for a
// signature type, per models/signature.rs.
func signatureSize(t SignatureType) (sigLen, padLen int, err error) {
	switch t {
	case SignatureRSA4096SHA1, SignatureRSA4096SHA256:
		return 0x200, 0x3C, nil
	case SignatureRSA2048SHA1, SignatureRSA2048SHA256:
		return 0x100, 0x3C, nil
	case SignatureECDSASHA1:
		return 0x3C, 0x40, nil
	case SignatureECDSASHA256:
		return 0x3C, 0x40, nil
	default:
		return 0, 0, fmt.Errorf("ctrcia: unsupported signature type 0x%08x", uint32(t))
	}
}

// readSignature reads a signature header (type, signature bytes, padding)
// and returns the type plus the raw signature+padding block that follows
// it, so it can be re-emitted verbatim when the payload is unmodified.
func readSignature(r io.Reader) (SignatureType, []byte, error) {
	var typeBuf [4]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("signature: failed to read type: %w", err)
	}
	sigType := SignatureType(binary.BigEndian.Uint32(typeBuf[:]))

	sigLen, padLen, err := signatureSize(sigType)
	if err != nil {
		return 0, nil, err
	}

	block := make([]byte, sigLen+padLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return 0, nil, fmt.Errorf("signature: failed to read body: %w", err)
	}

	return sigType, block, nil
}

// Ticket is the parsed form of a CDN ticket (cetk), with RSA signature
// verification deliberately out of scope: the signature block is kept
// verbatim in Signature so a ticket can be re-emitted byte-for-byte.
type Ticket struct {
	SignatureType SignatureType
	Signature     []byte

	Issuer             string
	Version            byte
	CaCrlVersion       byte
	SignerCrlVersion   byte
	EncryptedTitleKey  [16]byte
	TicketID           uint64
	ConsoleID          uint32
	TitleID            uint64
	TicketTitleVersion uint16
	LicenseType        byte
	CommonKeyIndex     byte
	EShopAccountID     uint32
	Audit              byte
	Limits             [0x40]byte
	ContentIndex       []byte // raw header_word+total_size+data blob

	// contentIndices, when ContentIndex is empty, lists the content
	// indices WriteTo should mark present in a freshly synthesized
	// content-index bitmap. Set via BuildTicket; zero value falls back to
	// marking index 0 only.
	contentIndices []uint16

	// CertChain holds any certificate bytes a cetk dump carries appended
	// after its content index, verbatim and unverified.
	CertChain []byte
}

const ticketDataSize = 0x164 // TicketData excluding the variable ContentIndex tail

// ParseTicket parses a ticket body (everything after the signature header
// has already been consumed by the caller, or use ParseTicketFull).
func parseTicketData(data []byte) (*Ticket, error) {
	if len(data) < ticketDataSize {
		return nil, &Error{Kind: FormatError, Message: "ticket: body truncated"}
	}

	issuer := string(bytes.TrimRight(data[0x00:0x40], "\x00"))

	t := &Ticket{
		Issuer:             issuer,
		Version:            data[0x7C],
		CaCrlVersion:       data[0x7D],
		SignerCrlVersion:   data[0x7E],
		TicketID:           binary.BigEndian.Uint64(data[0x90:0x98]),
		ConsoleID:          binary.BigEndian.Uint32(data[0x98:0x9C]),
		TitleID:            binary.BigEndian.Uint64(data[0x9C:0xA4]),
		TicketTitleVersion: binary.BigEndian.Uint16(data[0xA6:0xA8]),
		LicenseType:        data[0xB0],
		CommonKeyIndex:     data[0xB1],
		EShopAccountID:     binary.BigEndian.Uint32(data[0xDC:0xE0]),
		Audit:              data[0xE1],
	}
	copy(t.EncryptedTitleKey[:], data[0x7F:0x8F])
	copy(t.Limits[:], data[0x124:0x164])

	if len(data) > ticketDataSize {
		tail := data[ticketDataSize:]

		// The content index is a header word (range count) + a total_size
		// word + total_size bytes of bitmap data; anything declared beyond
		// that is an appended certificate chain, as real cetk dumps carry.
		declared := len(tail)
		if len(tail) >= 8 {
			totalSize := int(binary.BigEndian.Uint32(tail[4:8]))
			if totalSize >= 0 && 8+totalSize <= len(tail) {
				declared = 8 + totalSize
			}
		}

		t.ContentIndex = append([]byte(nil), tail[:declared]...)
		if declared < len(tail) {
			t.CertChain = append([]byte(nil), tail[declared:]...)
		}
	}

	return t, nil
}

// ParseTicket parses a full ticket, signature header included.
func ParseTicket(r io.Reader) (*Ticket, error) {
	sigType, sig, err := readSignature(r)
	if err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ticket: failed to read body: %w", err)
	}

	t, err := parseTicketData(body)
	if err != nil {
		return nil, err
	}
	t.SignatureType = sigType
	t.Signature = sig
	return t, nil
}

// DecryptedTitleKey unwraps the ticket's title key using the given
// KeyProvider and the ticket's own common key index.
func (t *Ticket) DecryptedTitleKey(keys KeyProvider) ([16]byte, error) {
	return UnwrapTitleKey(keys, int(t.CommonKeyIndex), t.TitleID, t.EncryptedTitleKey)
}

// WriteTo serializes the ticket back to wire format. When Signature is
// empty (a freshly built ticket), a zero-filled RSA-2048-SHA256 signature
// block is emitted, since this tool never holds a signing key.
func (t *Ticket) WriteTo(w io.Writer) (int64, error) {
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

	body := make([]byte, ticketDataSize)
	copy(body[0x00:0x40], []byte(t.Issuer))
	body[0x7C] = t.Version
	body[0x7D] = t.CaCrlVersion
	body[0x7E] = t.SignerCrlVersion
	copy(body[0x7F:0x8F], t.EncryptedTitleKey[:])
	binary.BigEndian.PutUint64(body[0x90:0x98], t.TicketID)
	binary.BigEndian.PutUint32(body[0x98:0x9C], t.ConsoleID)
	binary.BigEndian.PutUint64(body[0x9C:0xA4], t.TitleID)
	binary.BigEndian.PutUint16(body[0xA6:0xA8], t.TicketTitleVersion)
	body[0xB0] = t.LicenseType
	body[0xB1] = t.CommonKeyIndex
	binary.BigEndian.PutUint32(body[0xDC:0xE0], t.EShopAccountID)
	body[0xE1] = t.Audit
	copy(body[0x124:0x164], t.Limits[:])

	buf.Write(body)

	contentIndex := t.ContentIndex
	if len(contentIndex) == 0 {
		contentIndex = contentIndexMask(t.contentIndices)
	}
	buf.Write(contentIndex)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// contentIndexMask builds a content-index bitmap ticket builders fall back
// to when none was parsed from an existing ticket, marking every index in
// indices as present (per spec.md §4.5: a synthesized ticket's content mask
// must cover every content index the TMD declares). An empty indices marks
// only index 0, matching what real tickets carry when every content uses
// the shared title key and no TMD was available to consult.
func contentIndexMask(indices []uint16) []byte {
	data := make([]byte, 0x2000/8)
	if len(indices) == 0 {
		data[0] = 0x80
	} else {
		for _, idx := range indices {
			byteIdx := idx / 8
			bitIdx := idx % 8
			if int(byteIdx) < len(data) {
				data[byteIdx] |= 0x80 >> bitIdx
			}
		}
	}
	out := make([]byte, 8+len(data))
	binary.BigEndian.PutUint32(out[0:4], 1)                 // header word: one range
	binary.BigEndian.PutUint32(out[4:8], uint32(len(data))) // total_size
	copy(out[8:], data)
	return out
}
