package jpeg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lms-scan/lms-scan/internal/parser"
)

func TestMatch_ClaimsJPEGExtensions(t *testing.T) {
	p := New()
	for _, path := range []string{"/a/x.jpg", "/a/x.JPEG"} {
		if _, ok := p.Match(parser.FileInfo{Path: path}); !ok {
			t.Errorf("expected %s to be claimed", path)
		}
	}
	if _, ok := p.Match(parser.FileInfo{Path: "/a/x.png"}); ok {
		t.Errorf("expected .png to be rejected")
	}
}

func TestReadDimensions_MinimalSOF0(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jpg")

	// SOI, then a minimal SOF0 (baseline) segment: length=11, precision=8,
	// height=100, width=200, 1 component (id=1, sampling=0x11, qtable=0).
	buf := []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xC0, // SOF0
		0x00, 0x0B, // length = 11
		0x08,       // precision
		0x00, 0x64, // height = 100
		0x00, 0xC8, // width = 200
		0x01,             // num components
		0x01, 0x11, 0x00, // component 1
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write temp jpeg: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open temp jpeg: %v", err)
	}
	defer f.Close()

	w, h, err := readDimensions(f)
	if err != nil {
		t.Fatalf("readDimensions: %v", err)
	}
	if w != 200 || h != 100 {
		t.Errorf("got width=%d height=%d, want 200x100", w, h)
	}
}
