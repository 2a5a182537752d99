package ctrcia

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"io"
	"os"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

// newAESCBCDecryptReader wraps src with the standard outer CIA content
// decryption: AES-128-CBC under key, IV built by ContentIV.
func newAESCBCDecryptReader(src io.Reader, key [16]byte, iv [16]byte) (io.Reader, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return ctrutil.NewCipherReader(src, cipher.NewCBCDecrypter(block, iv[:])), nil
}

// spillFile is a seekable buffer backed by a temp file, used so the NCCH
// transform can re-read its header after peeking at it, and so ExeFS's
// file table can be consulted while streaming the rest of the partition,
// without holding the whole (possibly very large) RomFS region in memory.
type spillFile struct {
	*os.File
}

// bufferAll copies r into a temp file and returns it positioned at the
// start, ready for random access.
func bufferAll(r io.Reader) (*spillFile, error) {
	f, err := os.CreateTemp("", "ctrcia-spill-*")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &spillFile{File: f}, nil
}

// bufferAllHashed is bufferAll plus a SHA-256 digest of the bytes copied,
// so the decrypt pipeline can check a content's TMD-declared hash without a
// second pass over the (possibly large) raw content.
func bufferAllHashed(r io.Reader) (*spillFile, [32]byte, error) {
	f, err := os.CreateTemp("", "ctrcia-spill-*")
	if err != nil {
		return nil, [32]byte{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(f, io.TeeReader(r, h)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, [32]byte{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return &spillFile{File: f}, sum, nil
}

// hashFile computes the SHA-256 digest of the file at path, used to check a
// content file against the TMD-declared hash before packing it.
func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func (s *spillFile) release() {
	name := s.Name()
	s.Close()
	os.Remove(name)
}

// contentHasher accumulates a SHA-256 hash while bytes pass through it,
// used by the --rehash decrypt path.
type contentHasher struct {
	h interface {
		io.Writer
		Sum(b []byte) []byte
	}
}

func newContentHasher() *contentHasher {
	return &contentHasher{h: sha256.New()}
}

func (c *contentHasher) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

func (c *contentHasher) Sum() [32]byte {
	var out [32]byte
	copy(out[:], c.h.Sum(nil))
	return out
}
