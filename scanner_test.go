package ctrcia

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestScanTitleDirPrefersHighestTMDSuffix(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	touch(t, filepath.Join(dir, "tmd.5"))
	touch(t, filepath.Join(dir, "tmd.12"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if got.TMDPath != filepath.Join(dir, "tmd.12") {
		t.Errorf("TMDPath = %s, want tmd.12", got.TMDPath)
	}
}

func TestScanTitleDirBareTMDRanksLowest(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	touch(t, filepath.Join(dir, "tmd.0"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if got.TMDPath != filepath.Join(dir, "tmd.0") {
		t.Errorf("TMDPath = %s, want tmd.0 (bare tmd ranks lowest)", got.TMDPath)
	}
}

func TestScanTitleDirDiscoversTicketAndContents(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	touch(t, filepath.Join(dir, "cetk"))
	touch(t, filepath.Join(dir, "00000000.app"))
	touch(t, filepath.Join(dir, "00000001"))
	touch(t, filepath.Join(dir, "not-a-content-file.txt"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if got.TicketPath != filepath.Join(dir, "cetk") {
		t.Errorf("TicketPath = %s, want cetk", got.TicketPath)
	}
	if len(got.ContentPaths) != 2 {
		t.Fatalf("got %d content paths, want 2: %+v", len(got.ContentPaths), got.ContentPaths)
	}
	if got.ContentPaths[0] != filepath.Join(dir, "00000000.app") {
		t.Errorf("content 0 path = %s", got.ContentPaths[0])
	}
	if got.ContentPaths[1] != filepath.Join(dir, "00000001") {
		t.Errorf("content 1 path = %s", got.ContentPaths[1])
	}
}

func TestScanTitleDirAcceptsTikSuffix(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	touch(t, filepath.Join(dir, "00033500.tik"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if got.TicketPath == "" {
		t.Error("expected a .tik file to be discovered as the ticket")
	}
}

func TestScanTitleDirDiscoversMeta(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	touch(t, filepath.Join(dir, "meta"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if got.MetaPath != filepath.Join(dir, "meta") {
		t.Errorf("MetaPath = %s, want meta", got.MetaPath)
	}
}

func TestScanTitleDirErrorsWithoutTMD(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "00000000.app"))

	if _, err := ScanTitleDir(dir, false); err == nil {
		t.Error("expected an error when no tmd file is present")
	}
}

func TestScanTitleDirNonRecursiveSkipsSubdirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	touch(t, filepath.Join(sub, "00000000.app"))

	got, err := ScanTitleDir(dir, false)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if len(got.ContentPaths) != 0 {
		t.Errorf("expected subdirectory contents to be skipped, got %+v", got.ContentPaths)
	}
}

func TestScanTitleDirRecursiveDescendsSubdirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "tmd"))
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	touch(t, filepath.Join(sub, "00000000.app"))

	got, err := ScanTitleDir(dir, true)
	if err != nil {
		t.Fatalf("ScanTitleDir: %v", err)
	}
	if len(got.ContentPaths) != 1 {
		t.Errorf("expected the recursive scan to find the subdirectory's content, got %+v", got.ContentPaths)
	}
}
