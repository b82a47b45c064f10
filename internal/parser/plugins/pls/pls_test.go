package pls

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCountEntries_UsesNumberOfEntriesWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.pls")
	content := "[playlist]\nFile1=/music/a.mp3\nFile2=/music/b.mp3\nNumberOfEntries=2\nVersion=2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp pls: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if n := countEntries(f); n != 2 {
		t.Errorf("got %d, want 2", n)
	}
}

func TestCountEntries_FallsBackToFileLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.pls")
	content := "[playlist]\nFile1=/music/a.mp3\nFile2=/music/b.mp3\nFile3=/music/c.mp3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp pls: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if n := countEntries(f); n != 3 {
		t.Errorf("got %d, want 3", n)
	}
}
