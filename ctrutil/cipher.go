package ctrutil

import (
	"crypto/cipher"
	"io"

	"github.com/connesc/cipherio"
)

// NewCipherReader wraps the given Reader to add on-the-fly encryption or
// decryption using the given BlockMode. The input must be aligned to the
// cipher block size.
//
// This delegates to cipherio, which implements exactly the block-chaining
// behavior this package used to hand-roll: buffering is limited to the tail
// of an incomplete block, and it is safe to stop reading at a block
// boundary and reuse the underlying Reader for something else.
func NewCipherReader(src io.Reader, blockMode cipher.BlockMode) io.Reader {
	return cipherio.NewBlockReader(src, blockMode)
}

// NewStreamReader wraps the given Reader to add on-the-fly XOR-keystream
// encryption or decryption using the given Stream (e.g. AES-CTR). Unlike
// BlockMode ciphers, a Stream has no block-alignment requirement, so this is
// a thin wrapper over the standard library's cipher.StreamReader.
func NewStreamReader(src io.Reader, stream cipher.Stream) io.Reader {
	return &cipher.StreamReader{S: stream, R: src}
}
