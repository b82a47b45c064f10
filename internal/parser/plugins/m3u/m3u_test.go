package m3u

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCountEntries_SkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.m3u")
	content := "#EXTM3U\n\n#EXTINF:123,Some Track\n/music/a.mp3\n  \n/music/b.mp3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp m3u: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if n := countEntries(f); n != 2 {
		t.Errorf("got %d entries, want 2", n)
	}
}
