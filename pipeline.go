package ctrcia

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ProgressReporter receives progress notifications from Pack/Decrypt. The
// CLI layer implements this over github.com/cheggaaa/pb/v3; callers that
// don't care about progress can pass nil.
type ProgressReporter interface {
	Advance(n uint64)
	Warn(message string)
}

// DecryptOptions configures DecryptCIA.
type DecryptOptions struct {
	Rehash bool
	// Strict makes a content hash mismatch against the TMD fatal instead
	// of a warning, per spec.md §7.
	Strict   bool
	Progress ProgressReporter
}

// DecryptCIA reads a complete CIA from src, decrypts every NCCH content
// (passing non-NCCH contents through byte-for-byte, per spec.md Testable
// Property #7), rewrites the ticket's title key as the plaintext common
// key the decrypted contents no longer need, and writes a new CIA to dst.
//
// ctx is checked between contents so a long-running decrypt can be
// cancelled; a cancellation surfaces as a Cancelled *Error.
func DecryptCIA(ctx context.Context, keys KeyProvider, src io.ReadSeeker, dst io.Writer, opts DecryptOptions) error {
	cia, err := ReadCIA(src)
	if err != nil {
		return err
	}

	titleKey, err := cia.Ticket.DecryptedTitleKey(keys)
	if err != nil {
		return fmt.Errorf("decrypt: failed to unwrap title key: %w", err)
	}

	decrypted := make([]CIAContent, 0, len(cia.Contents))
	contentHashes := make(map[uint32][32]byte, len(cia.Contents))

	for i, region := range cia.Contents {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: Cancelled, Message: "decrypt: cancelled", Err: err}
		}

		raw, rawHash, err := bufferAllHashed(cia.OpenContent(region))
		if err != nil {
			return (&Error{Kind: IoError, Message: "decrypt: failed to buffer content", Err: err}).WithContent(i, "content")
		}
		if rawHash != region.Chunk.Hash {
			msg := fmt.Sprintf("decrypt: content %08x hash mismatches TMD (got %x, want %x)", region.Chunk.ID, rawHash, region.Chunk.Hash)
			if opts.Strict {
				raw.release()
				return (&Error{Kind: CryptoError, Message: msg}).WithContent(i, "content")
			}
			if opts.Progress != nil {
				opts.Progress.Warn(msg)
			}
		}

		tmp, err := os.CreateTemp("", "ctrcia-content-*")
		if err != nil {
			raw.release()
			return (&Error{Kind: IoError, Message: "decrypt: failed to create temp file", Err: err}).WithContent(i, "content")
		}

		err = decryptContent(raw, tmp, region.Chunk, titleKey, keys.SeedDB(), opts.Progress)
		raw.release()
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return (&Error{Kind: CryptoError, Message: "decrypt: failed to decrypt content", Err: err}).WithContent(i, "content")
		}

		if opts.Rehash {
			if _, err := tmp.Seek(0, io.SeekStart); err != nil {
				tmp.Close()
				return err
			}
			h := newContentHasher()
			if _, err := io.Copy(h, tmp); err != nil {
				tmp.Close()
				return err
			}
			contentHashes[region.Chunk.ID] = h.Sum()
		}

		if err := tmp.Close(); err != nil {
			return err
		}

		info, err := os.Stat(tmp.Name())
		if err != nil {
			return err
		}

		chunk := region.Chunk
		chunk.Size = uint64(info.Size())
		chunk.Type &^= ContentTypeEncrypted

		decrypted = append(decrypted, CIAContent{
			Chunk:  chunk,
			Source: &tempFileSource{path: tmp.Name(), size: info.Size()},
		})

		if opts.Progress != nil {
			opts.Progress.Advance(uint64(info.Size()))
		}
	}
	defer func() {
		for _, c := range decrypted {
			if tf, ok := c.Source.(*tempFileSource); ok {
				os.Remove(tf.path)
			}
		}
	}()

	tmd := cia.TMD
	if opts.Rehash {
		tmd.Rehash(contentHashes)
	}
	// tmd.Contents may list more chunks than the CIA actually carries (an
	// optional content the header bitmap marks absent): rebuild it from
	// exactly what was decrypted rather than assuming a 1:1 positional
	// correspondence with the original record order.
	tmd.Contents = make([]ContentChunk, len(decrypted))
	for i, c := range decrypted {
		tmd.Contents[i] = c.Chunk
	}

	ticket := cia.Ticket
	ticket.EncryptedTitleKey = titleKey // title key is now stored in the clear, matching a decrypted CIA's convention of a "no-op" common key index 0

	return WriteCIA(dst, cia.CertChain, ticket, tmd, decrypted, cia.Meta)
}

// decryptContent streams one content: outer AES-CBC under the title key,
// then (if the payload is an NCCH) the inner per-region AES-CTR transform.
// Non-NCCH payloads are passed through unchanged after the outer decrypt,
// per spec.md Testable Property #7.
func decryptContent(src io.Reader, dst io.Writer, chunk ContentChunk, titleKey [16]byte, seeds *SeedDB, progress ProgressReporter) error {
	var plain io.Reader = src
	if chunk.Type.Has(ContentTypeEncrypted) {
		block, err := newAESCBCDecryptReader(src, titleKey, ContentIV(chunk.Index))
		if err != nil {
			return err
		}
		plain = block
	}

	buffered, err := bufferAll(plain)
	if err != nil {
		return err
	}
	defer buffered.release()

	return DecryptNCCH(dst, buffered, seeds, func(msg string) {
		if progress != nil {
			progress.Warn(msg)
		}
	})
}

// tempFileSource implements CIAContentSource over a temp file produced by
// the decrypt pipeline.
type tempFileSource struct {
	path string
	size int64
}

func (t *tempFileSource) Open() (io.ReadCloser, error) {
	return os.Open(t.path)
}

func (t *tempFileSource) Size() int64 {
	return t.size
}
