// Package jpeg extracts dimensions from a JPEG file's SOF marker, grounded
// on _examples/original_source/src/plugins/jpeg/jpeg.c's segment walk.
package jpeg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/dlna"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "jpeg"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"image"} }
func (p *Plugin) Order() int           { return 10 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	lower := strings.ToLower(info.Path)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
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
		return fmt.Errorf("jpeg: open %s: %w", info.Path, err)
	}
	defer f.Close()

	width, height, err := readDimensions(f)
	if err != nil {
		return fmt.Errorf("jpeg: %s: %w", info.Path, err)
	}

	img := &database.ImageRecord{
		Title:  titleFromPath(info),
		Width:  width,
		Height: height,
	}
	if profile, ok := dlna.MatchImageProfile(dlna.Descriptor{Container: "jpeg", Width: width, Height: height}); ok {
		img.DLNAProfile = profile.Name
		img.DLNAMime = profile.MIME
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("jpeg: file row missing for %s: %w", info.Path, err)
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

// readDimensions walks JPEG markers looking for the first SOFn (baseline
// or progressive start-of-frame) segment, which carries the image's
// height/width as a 2+2-byte big-endian pair right after its 1-byte
// precision field.
func readDimensions(f *os.File) (width, height int, err error) {
	r := bufio.NewReader(f)

	var soi [2]byte
	if _, err := r.Read(soi[:]); err != nil || soi[0] != 0xFF || soi[1] != 0xD8 {
		return 0, 0, fmt.Errorf("not a JPEG (bad SOI marker)")
	}

	for {
		marker, err := nextMarker(r)
		if err != nil {
			return 0, 0, err
		}
		if isSOF(marker) {
			var lenBuf [2]byte
			if _, err := r.Read(lenBuf[:]); err != nil {
				return 0, 0, err
			}
			segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
			body := make([]byte, segLen-2)
			if _, err := readFull(r, body); err != nil {
				return 0, 0, err
			}
			if len(body) < 5 {
				return 0, 0, fmt.Errorf("truncated SOF segment")
			}
			height = int(binary.BigEndian.Uint16(body[1:3]))
			width = int(binary.BigEndian.Uint16(body[3:5]))
			return width, height, nil
		}
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			continue // markers with no payload
		}
		var lenBuf [2]byte
		if _, err := r.Read(lenBuf[:]); err != nil {
			return 0, 0, err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return 0, 0, fmt.Errorf("invalid segment length")
		}
		if _, err := r.Discard(segLen - 2); err != nil {
			return 0, 0, err
		}
	}
}

func nextMarker(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			continue
		}
		m, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if m == 0x00 || m == 0xFF {
			continue
		}
		return m, nil
	}
}

func isSOF(marker byte) bool {
	switch marker {
	case 0xC0, 0xC1, 0xC2, 0xC3, 0xC5, 0xC6, 0xC7, 0xC9, 0xCA, 0xCB, 0xCD, 0xCE, 0xCF:
		return true
	default:
		return false
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
