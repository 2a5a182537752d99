package ctrcia

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// fileContentSource implements CIAContentSource over a plain file on disk.
type fileContentSource struct {
	path string
	size int64
}

func newFileContentSource(path string) (*fileContentSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fileContentSource{path: path, size: info.Size()}, nil
}

func (f *fileContentSource) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *fileContentSource) Size() int64 {
	return f.size
}

// PackOptions configures PackTitle, per spec.md §5 and the CLI flags
// supplementing it (--recursive, --ensure-ticket-exists, --cleanup).
type PackOptions struct {
	Recursive          bool
	EnsureTicketExists bool
	TitleKeyPassword   string
	// Strict makes a content hash mismatch against the TMD fatal instead
	// of a warning, per spec.md §7.
	Strict   bool
	Progress ProgressReporter
}

// BuildTicket constructs a minimal ticket for a title, per spec.md §4.5,
// when no cetk is present in the source directory. If keys holds real
// common keys the ticket's title key is synthesized via GenerateTitleKey;
// the result is a "fake" ticket good enough for offline installation on
// custom firmware, not a Nintendo-issued one. contentIndices lists every
// content index the TMD declares, so the synthesized content-index mask
// covers the whole title rather than content 0 alone (Scenario C).
func BuildTicket(keys KeyProvider, titleID uint64, commonKeyIndex byte, password string, contentIndices []uint16) (*Ticket, error) {
	plain, encrypted, err := GenerateTitleKey(keys, fmt.Sprintf("%016x", titleID), password)
	if err != nil {
		return nil, fmt.Errorf("build: failed to generate title key: %w", err)
	}
	_ = plain

	return &Ticket{
		Issuer:             "Root-CA00000003-XS0000000c",
		TitleID:            titleID,
		CommonKeyIndex:     commonKeyIndex,
		EncryptedTitleKey:  encrypted,
		LicenseType:        0x01,
		TicketTitleVersion: 0,
		contentIndices:     contentIndices,
	}, nil
}

// PackTitle builds a complete CIA from a directory of loose CDN downloads:
// a TMD, an optional ticket, and the content files the TMD references.
// Missing but non-optional contents are a fatal InputMissing error;
// missing optional (TMD bit 0x4000) contents are skipped, matching what a
// partial CDN mirror yields.
func PackTitle(keys KeyProvider, dir string, out io.Writer, opts PackOptions) error {
	titleDir, err := ScanTitleDir(dir, opts.Recursive)
	if err != nil {
		return err
	}

	tmdFile, err := os.Open(titleDir.TMDPath)
	if err != nil {
		return &Error{Kind: InputMissing, Message: "pack: failed to open tmd", Err: err}
	}
	defer tmdFile.Close()

	tmd, err := ParseTMD(tmdFile)
	if err != nil {
		return err
	}

	var ticket *Ticket
	if titleDir.TicketPath != "" {
		tf, err := os.Open(titleDir.TicketPath)
		if err != nil {
			return &Error{Kind: InputMissing, Message: "pack: failed to open ticket", Err: err}
		}
		ticket, err = ParseTicket(tf)
		tf.Close()
		if err != nil {
			return err
		}
	} else if opts.EnsureTicketExists {
		indices := make([]uint16, len(tmd.Contents))
		for i, c := range tmd.Contents {
			indices[i] = c.Index
		}
		ticket, err = BuildTicket(keys, tmd.TitleID, 0, opts.TitleKeyPassword, indices)
		if err != nil {
			return err
		}
	} else {
		return &Error{Kind: InputMissing, Message: "pack: no ticket found and --ensure-ticket-exists not set"}
	}

	sorted := append([]ContentChunk(nil), tmd.Contents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	contents := make([]CIAContent, 0, len(sorted))
	for i, chunk := range sorted {
		path, ok := titleDir.ContentPaths[chunk.ID]
		if !ok {
			if chunk.Type.Has(ContentTypeOptional) {
				if opts.Progress != nil {
					opts.Progress.Warn(fmt.Sprintf("skipping missing optional content %08x", chunk.ID))
				}
				continue
			}
			return (&Error{Kind: InputMissing, Message: fmt.Sprintf("pack: missing content %08x", chunk.ID)}).WithContent(i, "content")
		}

		src, err := newFileContentSource(path)
		if err != nil {
			return (&Error{Kind: IoError, Message: "pack: failed to stat content", Err: err}).WithContent(i, "content")
		}

		sum, err := hashFile(path)
		if err != nil {
			return (&Error{Kind: IoError, Message: "pack: failed to hash content", Err: err}).WithContent(i, "content")
		}
		if sum != chunk.Hash {
			msg := fmt.Sprintf("pack: content %08x hash mismatches TMD (got %x, want %x)", chunk.ID, sum, chunk.Hash)
			if opts.Strict {
				return (&Error{Kind: CryptoError, Message: msg}).WithContent(i, "content")
			}
			if opts.Progress != nil {
				opts.Progress.Warn(msg)
			}
		}

		contents = append(contents, CIAContent{Chunk: chunk, Source: src})

		if opts.Progress != nil {
			opts.Progress.Advance(chunk.Size)
		}
	}

	var meta []byte
	if titleDir.MetaPath != "" {
		meta, err = os.ReadFile(titleDir.MetaPath)
		if err != nil {
			return &Error{Kind: IoError, Message: "pack: failed to read meta block", Err: err}
		}
	}

	return WriteCIA(out, buildCertChain(ticket, tmd), ticket, tmd, contents, meta)
}

// certChainFallbackSize is the size of a retail cetk's usual three-cert
// chain (CA, XS/CP, Root), used only to size the zero-filled placeholder
// when neither the ticket nor the TMD carries its own cert bytes.
const certChainFallbackSize = 0xA00

// buildCertChain assembles the certificate-chain section of a packed CIA.
// Per spec.md's RSA-verification Non-goal, certificates are opaque blobs:
// the ticket's and TMD's own trailing certificate bytes are passed through
// when present (matching how a real cetk/tmd CDN dump carries them), else a
// zero-filled placeholder chain is written, which every 3DS CFW install
// path tolerates for sideloaded content.
func buildCertChain(ticket *Ticket, tmd *TMD) []byte {
	var chain []byte
	chain = append(chain, ticket.CertChain...)
	chain = append(chain, tmd.CertChain...)
	if len(chain) == 0 {
		return make([]byte, certChainFallbackSize)
	}
	return chain
}
