package ctrcia

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

// DecryptNCCH reads one NCCH partition from src (exactly header.size bytes,
// where size is known from the TMD content chunk), decrypts every
// CTR-encrypted region in place, rewrites the flags byte, and writes the
// result to dst. seeds may be nil if no UsesSeed content is present.
//
// This implements spec.md §4.8's per-region pipeline: ExHeader, ExeFS
// (per-file primary/secondary key selection) and RomFS each get their own
// AES-CTR counter derived from the partition ID and a region tag.
func DecryptNCCH(dst io.Writer, src io.ReadSeeker, seeds *SeedDB, warn func(string)) error {
	headerBuf := make([]byte, NCCHHeaderSize)
	if _, err := io.ReadFull(src, headerBuf); err != nil {
		return &Error{Kind: IoError, Message: "transform: failed to read ncch header", Err: err}
	}

	header, err := ParseNCCHHeader(headerBuf)
	if err == ErrNotNCCH {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err = io.Copy(dst, src)
		return err
	}
	if err != nil {
		return err
	}

	if header.Flags.UsesSeed {
		seed, ok := seeds.Lookup(header.ProgramID)
		if ok && header.SeedCheck != 0 {
			if !checkSeed(seed, header.ProgramID, header.SeedCheck) {
				if warn != nil {
					warn(fmt.Sprintf("seed check mismatch for program id %016x, proceeding anyway", header.ProgramID))
				}
			}
		}
	}

	keys, err := deriveNCCHKeys(header, seeds)
	if err != nil {
		return err
	}

	header.rewriteFlags()
	if _, err := dst.Write(header.Raw[:]); err != nil {
		return &Error{Kind: IoError, Message: "transform: failed to write ncch header", Err: err}
	}

	var offset int64 // bytes from the start of the NCCH content, past the 0x200 header

	if header.ExHeaderSize > 0 {
		if err := decryptRegion(dst, src, keys.Primary, header.baseCounter(sectionExHeader), int64(header.ExHeaderSize)); err != nil {
			return (&Error{Kind: CryptoError, Message: "transform: failed to decrypt exheader", Err: err}).WithContent(0, "exheader")
		}
		offset += int64(header.ExHeaderSize)
	}

	if header.ExeFSSize > 0 {
		target := int64(header.ExeFSOffset) * MediaUnitSize
		if err := passThroughGap(dst, src, target-offset); err != nil {
			return err
		}
		offset = target

		if err := decryptExeFS(dst, src, header, keys); err != nil {
			return (&Error{Kind: CryptoError, Message: "transform: failed to decrypt exefs", Err: err}).WithContent(0, "exefs")
		}
		offset += int64(header.ExeFSSize) * MediaUnitSize
	}

	if header.RomFSSize > 0 {
		target := int64(header.RomFSOffset) * MediaUnitSize
		if err := passThroughGap(dst, src, target-offset); err != nil {
			return err
		}
		offset = target

		if err := decryptRegion(dst, src, keys.Secondary, header.baseCounter(sectionRomFS), int64(header.RomFSSize)*MediaUnitSize); err != nil {
			return (&Error{Kind: CryptoError, Message: "transform: failed to decrypt romfs", Err: err}).WithContent(0, "romfs")
		}
	}

	return nil
}

// passThroughGap copies n raw, undecrypted bytes from src to dst: the
// padding a real NCCH sometimes carries between its declared regions.
func passThroughGap(dst io.Writer, src io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(dst, src, n)
	return err
}

// decryptRegion streams n bytes from src to dst, decrypting with AES-CTR
// under key starting at baseCounter.
func decryptRegion(dst io.Writer, src io.Reader, key ctrutil.Key128, baseCounter [16]byte, n int64) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return err
	}
	stream := cipher.NewCTR(block, baseCounter[:])
	reader := ctrutil.NewStreamReader(io.LimitReader(src, n), stream)
	_, err = io.CopyN(dst, reader, n)
	return err
}

// decryptExeFS decrypts the ExeFS header (always under the primary key)
// then each file it describes, selecting the primary or secondary key per
// SecondaryKeyFile's rule. Files are consumed in on-disk (offset) order so
// src, a forward-only section of the NCCH stream, never needs to seek.
func decryptExeFS(dst io.Writer, src io.Reader, header *NCCHHeader, keys ncchKeys) error {
	headerBuf := make([]byte, ExeFSHeaderSize)

	// The header itself is encrypted too; decrypt it into a buffer first so
	// the file table can be read back out of it.
	block, err := aes.NewCipher(keys.Primary[:])
	if err != nil {
		return err
	}
	headerCounter := header.baseCounter(sectionExeFS)
	headerStream := cipher.NewCTR(block, headerCounter[:])
	rawHeader := make([]byte, ExeFSHeaderSize)
	if _, err := io.ReadFull(src, rawHeader); err != nil {
		return err
	}
	headerStream.XORKeyStream(headerBuf, rawHeader)

	if _, err := dst.Write(headerBuf); err != nil {
		return err
	}

	files := parseExeFSFileTable(headerBuf)
	// Sort by offset so reads stay monotonic over the forward-only stream.
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && files[j].Offset < files[j-1].Offset; j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}

	var streamed uint32
	for _, f := range files {
		if f.Offset > streamed {
			gap := int64(f.Offset - streamed)
			if _, err := io.CopyN(io.Discard, src, gap); err != nil {
				return err
			}
			if _, err := dst.Write(make([]byte, gap)); err != nil {
				return err
			}
			streamed += uint32(gap)
		}

		key := keys.Primary
		if SecondaryKeyFile(f.Name, header.CryptoMethod) {
			key = keys.Secondary
		}

		byteOffset := ExeFSHeaderSize + int64(f.Offset)
		counter := counterAtByteOffset(header.baseCounter(sectionExeFS), byteOffset)
		if err := decryptRegion(dst, src, key, counter, int64(f.Size)); err != nil {
			return err
		}
		streamed += f.Size
	}

	return nil
}
