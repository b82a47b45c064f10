// Package rm walks a RealMedia file's header chunk list far enough to
// read the CONT chunk's title/author strings and classify the stream as
// audio or video by extension, grounded on
// _examples/original_source/src/plugins/rm/rm.c.
package rm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "rm"

var magic = [4]byte{'.', 'R', 'M', 'F'}

var extensions = []string{".ra", ".rv", ".rm", ".rmj", ".rmvb"}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"video", "audio"} }
func (p *Plugin) Order() int           { return 15 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	lower := strings.ToLower(info.Path)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return nil, true
		}
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
		return fmt.Errorf("rm: open %s: %w", info.Path, err)
	}
	defer f.Close()

	if err := skipFileHeader(f); err != nil {
		return fmt.Errorf("rm: %s: not a RealMedia stream (bad header)", info.Path)
	}

	rawTitle, rawArtist, err := readUntilData(f)
	if err != nil {
		return fmt.Errorf("rm: %s: %w", info.Path, err)
	}

	title := ctx.Charset.Convert(rawTitle)
	if title == "" {
		title = info.Path[info.Base:]
		if i := strings.LastIndexByte(title, '.'); i >= 0 {
			title = title[:i]
		}
		title = ctx.Charset.Convert([]byte(title))
	}
	artist := ctx.Charset.Convert(rawArtist)

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("rm: file row missing for %s: %w", info.Path, err)
	}

	// Only the .ra extension is audio-only; rv/rm/rmj/rmvb are treated as
	// video, per rm.c's extension-based fallback (no MDPR mimetype check
	// is done there either — it's left as a TODO in the original).
	if strings.HasSuffix(strings.ToLower(info.Path), ".ra") {
		audio := &database.AudioRecord{Title: title, Artist: artist, Codec: "realaudio", Container: "rm"}
		if err := ctx.Store.ResolveIDs(audio); err != nil {
			return fmt.Errorf("rm: resolve artist/album/genre: %w", err)
		}
		return ctx.Store.UpsertAudio(existing.ID, audio)
	}

	return ctx.Store.UpsertVideo(existing.ID, &database.VideoRecord{Title: title, Container: "rm"})
}

// rmFileHeaderExtra is the file header's trailing file-version and
// number-of-headers fields, skipped unconditionally (rm.c notes that even
// though this should only apply to version 0/1 headers, skipping it
// unconditionally is what actually works against real files).
const rmFileHeaderExtra = 8

// skipFileHeader reads and validates the fixed ".RMF" header: 4-byte
// type, 4-byte big-endian size, 2-byte version, then rmFileHeaderExtra
// bytes of file version/header count.
func skipFileHeader(f *os.File) error {
	var hdr [4 + 4 + 2]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return err
	}
	if [4]byte(hdr[0:4]) != magic {
		return fmt.Errorf("bad magic")
	}
	_, err := f.Seek(rmFileHeaderExtra, io.SeekCurrent)
	return err
}

// readUntilData walks the chunk list (each a 4-byte type, 4-byte
// big-endian size) until it reaches a CONT chunk (parsed for title/
// author, per rm.c's _parse_cont_header) or a DATA chunk (end of the
// header section).
func readUntilData(f *os.File) (title, artist []byte, err error) {
	for {
		chunkType, size, err := readChunkHeader(f)
		if err != nil {
			return nil, nil, err
		}
		if chunkType == "DATA" {
			return title, artist, nil
		}
		if chunkType == "CONT" {
			title, artist = parseContHeader(f)
			return title, artist, nil
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return nil, nil, err
		}
	}
}

func readChunkHeader(f *os.File) (chunkType string, size uint32, err error) {
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return "", 0, err
	}
	return string(hdr[0:4]), binary.BigEndian.Uint32(hdr[4:8]), nil
}

// parseContHeader reads CONT's 2-byte version (ignored), then the
// title/author strings; copyright and comment are read and discarded to
// keep the stream position consistent.
func parseContHeader(f *os.File) (title, artist []byte) {
	if _, err := f.Seek(2, io.SeekCurrent); err != nil {
		return nil, nil
	}
	title = readPString(f)
	artist = readPString(f)
	readPString(f) // copyright
	readPString(f) // comment
	return title, artist
}

// readPString reads a 2-byte big-endian length prefix followed by that
// many raw bytes (rm.c's _read_string).
func readPString(f *os.File) []byte {
	var lenBuf [2]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		return nil
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil
	}
	return buf
}
