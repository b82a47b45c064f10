package id3

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lms-scan/lms-scan/internal/parser"
)

func TestMatch_ClaimsMP3Extension(t *testing.T) {
	p := New()
	if _, ok := p.Match(parser.FileInfo{Path: "/music/song.mp3"}); !ok {
		t.Fatalf("expected .mp3 to be claimed")
	}
	if _, ok := p.Match(parser.FileInfo{Path: "/music/song.flac"}); ok {
		t.Fatalf("expected .flac to be rejected")
	}
}

func TestReadID3v1_ParsesFixedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.mp3")

	tag := make([]byte, 128)
	copy(tag[0:3], "TAG")
	copy(tag[3:33], padTo("My Title", 30))
	copy(tag[33:63], padTo("My Artist", 30))
	copy(tag[63:93], padTo("My Album", 30))
	tag[125] = 0
	tag[126] = 5
	tag[127] = 17 // "Rock"

	if err := os.WriteFile(path, tag, 0644); err != nil {
		t.Fatalf("write temp mp3: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open temp mp3: %v", err)
	}
	defer f.Close()

	tags := readID3v1(f)
	if tags == nil {
		t.Fatal("expected a parsed tag set")
	}
	if tags.title != "My Title" || tags.artist != "My Artist" || tags.album != "My Album" {
		t.Errorf("got %+v", tags)
	}
	if tags.trackno != 5 {
		t.Errorf("expected trackno=5, got %d", tags.trackno)
	}
	if tags.genre != "Rock" {
		t.Errorf("expected genre Rock, got %q", tags.genre)
	}
}

func TestResolveGenre_NumericForm(t *testing.T) {
	if got := resolveGenre("(17)"); got != "Rock" {
		t.Errorf("got %q", got)
	}
	if got := resolveGenre("Custom Genre"); got != "Custom Genre" {
		t.Errorf("expected passthrough for non-numeric genre, got %q", got)
	}
}

func padTo(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
