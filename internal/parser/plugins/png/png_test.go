package png

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestReadIHDR_ParsesWidthHeight(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")

	ihdrBody := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdrBody[0:4], 640)
	binary.BigEndian.PutUint32(ihdrBody[4:8], 480)
	ihdrBody[8] = 8 // bit depth
	ihdrBody[9] = 2 // color type

	var buf []byte
	buf = append(buf, pngSignature[:]...)
	chunkHeader := make([]byte, 8)
	binary.BigEndian.PutUint32(chunkHeader[0:4], uint32(len(ihdrBody)))
	copy(chunkHeader[4:8], "IHDR")
	buf = append(buf, chunkHeader...)
	buf = append(buf, ihdrBody...)

	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("write temp png: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open temp png: %v", err)
	}
	defer f.Close()

	w, h, err := readIHDR(f)
	if err != nil {
		t.Fatalf("readIHDR: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("got %dx%d, want 640x480", w, h)
	}
}

func TestReadIHDR_RejectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.png")
	if err := os.WriteFile(path, []byte("not a png"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if _, _, err := readIHDR(f); err == nil {
		t.Fatal("expected an error for a non-PNG file")
	}
}
