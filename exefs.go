package ctrcia

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

// ExeFSHeaderSize is the fixed size of an ExeFS header: 10 file records
// followed by 10 file hashes, stored in reverse order of the records.
const ExeFSHeaderSize = 0x200

const exeFSMaxFiles = 10

// ExeFSFile describes one file record in an ExeFS header.
type ExeFSFile struct {
	Name   string
	Offset uint32 // relative to the end of the ExeFS header
	Size   uint32
}

// ExeFS is the parsed form of an ExeFS header: the code/banner/icon files it
// describes, plus the decoded icon when present. File offsets are relative
// to the end of the 0x200-byte header, matching spec.md's region layout.
type ExeFS struct {
	Files []ExeFSFile
	Icon  *SMDH
}

// parseExeFSFileTable decodes the 10 file records of a raw 0x200-byte ExeFS
// header, skipping empty slots.
func parseExeFSFileTable(header []byte) []ExeFSFile {
	files := make([]ExeFSFile, 0, exeFSMaxFiles)
	for i := 0; i < exeFSMaxFiles; i++ {
		record := header[i*0x10 : (i+1)*0x10]
		name := string(bytes.TrimRight(record[:0x8], "\x00"))
		if name == "" {
			continue
		}

		offset := binary.LittleEndian.Uint32(record[0x8:])
		size := binary.LittleEndian.Uint32(record[0xc:])
		files = append(files, ExeFSFile{Name: name, Offset: offset, Size: size})
	}
	return files
}

// ParseExeFS reads and parses a 0x200-byte ExeFS header, then decodes the
// icon file if one is present.
func ParseExeFS(input io.Reader) (*ExeFS, error) {
	reader := ctrutil.NewReader(input)

	header := make([]byte, ExeFSHeaderSize)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, fmt.Errorf("exefs: failed to read header: %w", err)
	}

	files := parseExeFSFileTable(header)

	var iconOffset, iconSize uint32
	for _, f := range files {
		if f.Name == "icon" {
			iconOffset, iconSize = f.Offset, f.Size
		}
	}

	var icon *SMDH
	if iconSize > 0 {
		if iconSize != smdhSize {
			return nil, fmt.Errorf("exefs: when present, icon must have size %d, got %d", smdhSize, iconSize)
		}

		if err := reader.Discard(int64(iconOffset)); err != nil {
			return nil, fmt.Errorf("exefs: failed to jump to icon: %w", err)
		}

		var err error
		icon, err = ParseSMDH(io.LimitReader(reader, int64(iconSize)))
		if err != nil {
			return nil, err
		}
	}

	return &ExeFS{Files: files, Icon: icon}, nil
}

// Hash returns the fileHeaderIndex-th trailing SHA-256 hash following an
// ExeFS header, if present in raw (a 0x200-byte ExeFS header plus its
// trailing hash block). Hashes are stored in reverse file-record order,
// matching the 3DS ExeFS layout.
func ExeFSHash(raw []byte, fileHeaderIndex int) ([]byte, error) {
	hashBlockOffset := ExeFSHeaderSize - (exeFSMaxFiles * 0x20)
	if len(raw) < ExeFSHeaderSize {
		return nil, fmt.Errorf("exefs: header truncated")
	}
	if fileHeaderIndex < 0 || fileHeaderIndex >= exeFSMaxFiles {
		return nil, fmt.Errorf("exefs: file record index out of range: %d", fileHeaderIndex)
	}

	reverseIndex := exeFSMaxFiles - 1 - fileHeaderIndex
	start := hashBlockOffset + reverseIndex*0x20
	return raw[start : start+0x20], nil
}

// SecondaryKeyFile reports whether an ExeFS file uses the NCCH secondary
// key rather than the primary key, per spec.md's §4.8 rule: ".code" uses
// the secondary key when the NCCH's crypto method is non-zero, every other
// file (icon, banner, logo, ...) always uses the primary key.
func SecondaryKeyFile(name string, cryptoMethod byte) bool {
	return name == ".code" && cryptoMethod != 0
}
