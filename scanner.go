package ctrcia

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// contentFilePattern matches CDN content filenames: 8 hex digits, matched
// case-insensitively per spec.md §4.4, optionally followed by ".app".
var contentFilePattern = regexp.MustCompile(`(?i)^([0-9a-f]{8})(?:\.app)?$`)

// tmdFilePattern matches "tmd" and "tmd.N" variants.
var tmdFilePattern = regexp.MustCompile(`^tmd(?:\.(\d+))?$`)

// TitleDir is the result of scanning a directory of loose CDN downloads.
type TitleDir struct {
	Dir          string
	TMDPath      string
	TicketPath   string // may be empty
	MetaPath     string // may be empty
	ContentPaths map[uint32]string // content id -> path
}

// ScanTitleDir scans dir for a TMD, an optional ticket and the content
// files the TMD's chunk records reference, per spec.md §5's discovery
// rules. When recursive is true, subdirectories are scanned as well.
func ScanTitleDir(dir string, recursive bool) (*TitleDir, error) {
	var tmdCandidates []tmdCandidate
	var ticketCandidates []string
	var metaPath string
	contentPaths := make(map[uint32]string)

	walk := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()

		if m := tmdFilePattern.FindStringSubmatch(name); m != nil {
			suffix := -1 // bare "tmd" ranks below any suffixed variant
			if m[1] != "" {
				n, err := strconv.Atoi(m[1])
				if err == nil {
					suffix = n
				}
			}
			tmdCandidates = append(tmdCandidates, tmdCandidate{path: path, suffix: suffix})
			return nil
		}

		if name == "cetk" || strings.HasSuffix(name, ".tik") {
			ticketCandidates = append(ticketCandidates, path)
			return nil
		}

		if name == "meta" {
			metaPath = path
			return nil
		}

		if m := contentFilePattern.FindStringSubmatch(name); m != nil {
			id, err := strconv.ParseUint(m[1], 16, 32)
			if err == nil {
				contentPaths[uint32(id)] = path
			}
			return nil
		}

		return nil
	}

	if err := filepath.Walk(dir, walk); err != nil {
		return nil, &Error{Kind: IoError, Message: "scan: failed to walk directory", Err: err}
	}

	if len(tmdCandidates) == 0 {
		return nil, &Error{Kind: InputMissing, Message: "scan: no tmd file found in " + dir}
	}

	sort.Slice(tmdCandidates, func(i, j int) bool {
		return tmdCandidates[i].suffix > tmdCandidates[j].suffix
	})

	var ticketPath string
	if len(ticketCandidates) > 0 {
		sort.Strings(ticketCandidates)
		ticketPath = ticketCandidates[0]
	}

	return &TitleDir{
		Dir:          dir,
		TMDPath:      tmdCandidates[0].path,
		TicketPath:   ticketPath,
		MetaPath:     metaPath,
		ContentPaths: contentPaths,
	}, nil
}

type tmdCandidate struct {
	path   string
	suffix int
}
