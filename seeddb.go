package ctrcia

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// seedEntrySize is the size of one SeedDB entry: an 8-byte title ID key, a
// 16-byte seed, and 8 bytes of padding.
const seedEntrySize = 32

// SeedDB indexes the seeds used by NCCH partitions whose header declares
// UsesSeed, keyed by program ID. The on-disk format mirrors the community
// seeddb.bin layout: a 16-byte header (seed count, 12 reserved bytes)
// followed by seedCount 32-byte entries.
type SeedDB struct {
	seeds map[uint64][16]byte
}

// NewSeedDB builds an empty SeedDB; entries can be added with Add, or the
// whole table can be loaded with LoadSeedDB.
func NewSeedDB() *SeedDB {
	return &SeedDB{seeds: make(map[uint64][16]byte)}
}

// Add registers a seed for the given program ID, overwriting any existing
// entry.
func (db *SeedDB) Add(programID uint64, seed [16]byte) {
	db.seeds[programID] = seed
}

// Lookup returns the seed registered for programID, if any.
func (db *SeedDB) Lookup(programID uint64) ([16]byte, bool) {
	if db == nil {
		return [16]byte{}, false
	}
	seed, ok := db.seeds[programID]
	return seed, ok
}

// LoadSeedDB parses a seeddb.bin file from r.
func LoadSeedDB(r io.Reader) (*SeedDB, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &Error{Kind: FormatError, Message: "seeddb: failed to read header", Err: err}
	}

	count := binary.LittleEndian.Uint32(header[:4])

	db := NewSeedDB()
	entry := make([]byte, seedEntrySize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, &Error{Kind: FormatError, Message: fmt.Sprintf("seeddb: failed to read entry %d", i), Err: err}
		}

		// The key is the title ID stored reversed (little-endian byte
		// order), so reading it as little-endian yields the natural
		// numeric program ID.
		programID := binary.LittleEndian.Uint64(entry[:8])

		var seed [16]byte
		copy(seed[:], entry[8:24])

		db.Add(programID, seed)
	}

	return db, nil
}

// LoadSeedDBFile opens and parses a seeddb.bin file at path.
func LoadSeedDBFile(path string) (*SeedDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: InputMissing, Message: "seeddb: failed to open file", Err: err}
	}
	defer f.Close()

	return LoadSeedDB(f)
}
