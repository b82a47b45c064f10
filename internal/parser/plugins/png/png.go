// Package png extracts dimensions from a PNG file's IHDR chunk, grounded
// on _examples/original_source/src/plugins/png/png.c's chunk walk.
package png

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/dlna"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "png"

var pngSignature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"image"} }
func (p *Plugin) Order() int           { return 10 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	if strings.HasSuffix(strings.ToLower(info.Path), ".png") {
		return nil, true
	}
	return nil, false
}

func (p *Plugin) Setup(*parser.Context) error { return nil }
func (p *Plugin) Start() error                { return nil }
func (p *Plugin) Finish() error                { return nil }
func (p *Plugin) Close() error                 { return nil }

func (p *Plugin) Parse(ctx *parser.Context, info parser.FileInfo, _ parser.MatchToken) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return fmt.Errorf("png: open %s: %w", info.Path, err)
	}
	defer f.Close()

	width, height, err := readIHDR(f)
	if err != nil {
		return fmt.Errorf("png: %s: %w", info.Path, err)
	}

	img := &database.ImageRecord{
		Title:  titleFromPath(info),
		Width:  width,
		Height: height,
	}
	if profile, ok := dlna.MatchImageProfile(dlna.Descriptor{Container: "png", Width: width, Height: height}); ok {
		img.DLNAProfile = profile.Name
		img.DLNAMime = profile.MIME
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("png: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertImage(existing.ID, img)
}

func titleFromPath(info parser.FileInfo) string {
	name := info.Path[info.Base:]
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// readIHDR checks the 8-byte PNG signature, then reads the mandatory
// first chunk, which is always IHDR (13 bytes: width, height, then bit
// depth/color type/etc).
func readIHDR(f *os.File) (width, height int, err error) {
	var sig [8]byte
	if _, err := f.Read(sig[:]); err != nil || sig != pngSignature {
		return 0, 0, fmt.Errorf("not a PNG (bad signature)")
	}

	var chunkHeader [8]byte // 4-byte length + 4-byte type
	if _, err := f.Read(chunkHeader[:]); err != nil {
		return 0, 0, err
	}
	length := binary.BigEndian.Uint32(chunkHeader[0:4])
	chunkType := string(chunkHeader[4:8])
	if chunkType != "IHDR" || length < 8 {
		return 0, 0, fmt.Errorf("expected IHDR as first chunk, got %q", chunkType)
	}

	body := make([]byte, length)
	if _, err := f.Read(body); err != nil {
		return 0, 0, err
	}
	width = int(binary.BigEndian.Uint32(body[0:4]))
	height = int(binary.BigEndian.Uint32(body[4:8]))
	return width, height, nil
}
