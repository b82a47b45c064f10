package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/parser/plugins/m3u"
)

func newTestScanner(t *testing.T) (*Scanner, *database.Store) {
	t.Helper()
	store, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := parser.NewRegistry(m3u.New())
	pctx := parser.Context{Store: store, Charset: charset.New(nil, true, true)}
	s := New(store, registry, pctx, logging.Nop())
	return s, store
}

func TestScan_NewFileIsAddedAndParsed(t *testing.T) {
	s, store := newTestScanner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "list.m3u")
	if err := os.WriteFile(path, []byte("/a.mp3\n/b.mp3\n"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	result, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.FilesAdded != 1 {
		t.Fatalf("expected 1 file added, got %d (scanned=%d)", result.FilesAdded, result.FilesScanned)
	}

	rec, err := store.GetFileByPath(path)
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if rec.Parser != "m3u" {
		t.Errorf("expected parser=m3u, got %q", rec.Parser)
	}
}

func TestScan_RescanUnchangedFileIsUpToDate(t *testing.T) {
	s, _ := newTestScanner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "list.m3u")
	if err := os.WriteFile(path, []byte("/a.mp3\n"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}}); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	result, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.FilesAdded != 0 || result.FilesUpdated != 0 {
		t.Errorf("expected no changes on rescan, got added=%d updated=%d", result.FilesAdded, result.FilesUpdated)
	}
}

func TestScan_DualProcessModeDispatchesToWorker(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.sqlite3")
	store, err := database.OpenPath(dbPath, false)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()

	registry := parser.NewRegistry(m3u.New())
	pctx := parser.Context{Store: store, Charset: charset.New(nil, true, true)}
	s := New(store, registry, pctx, logging.Nop())

	path := filepath.Join(dir, "list.m3u")
	if err := os.WriteFile(path, []byte("/a.mp3\n"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	driver := NewDriver(dbPath, []string{"m3u"}, nil, 5*time.Second, 100)
	if err := driver.Start(); err != nil {
		t.Fatalf("driver Start: %v", err)
	}
	defer driver.Stop()

	result, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}, Driver: driver})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.FilesAdded != 1 {
		t.Fatalf("expected 1 file added, got %d", result.FilesAdded)
	}
}

func TestScan_DeletedFileIsTombstoned(t *testing.T) {
	s, store := newTestScanner(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "list.m3u")
	if err := os.WriteFile(path, []byte("/a.mp3\n"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}}); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove temp file: %v", err)
	}

	result, err := s.Scan(context.Background(), ScanOptions{Roots: []string{dir}})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if result.FilesRemoved != 1 {
		t.Fatalf("expected 1 file removed, got %d", result.FilesRemoved)
	}

	rec, err := store.GetFileByPath(path)
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if rec.Dtime == 0 {
		t.Errorf("expected tombstoned row, got dtime=0")
	}
}
