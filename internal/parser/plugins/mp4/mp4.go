// Package mp4 walks an ISO base media file's box tree far enough to read
// the movie header's duration, a video track's display dimensions, and
// the iTunes-style tags under moov/udta/meta/ilst, grounded on
// _examples/original_source/src/plugins/mp4/mp4.c's MP4GetMetadataName/
// Artist/Album/Genre/Track calls (there backed by libmp4v2; here read
// directly off the atom tree). Full per-track codec/profile decoding
// (stsd sample entry parsing) stays out of scope.
package mp4

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/dlna"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "mp4"

var extensions = []string{".mp4", ".m4v", ".m4a", ".mov"}

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

type boxInfo struct {
	durationSec   int
	width, height int
	title         string
	artist        string
	album         string
	genre         string
	trackNo       int
}

func (p *Plugin) Parse(ctx *parser.Context, info parser.FileInfo, _ parser.MatchToken) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return fmt.Errorf("mp4: open %s: %w", info.Path, err)
	}
	defer f.Close()

	bi, err := walkBoxes(f)
	if err != nil {
		return fmt.Errorf("mp4: %s: %w", info.Path, err)
	}

	// A moov/udta/meta/ilst atom tag always wins; only a file with no
	// iTunes-style tags at all falls back to a filename-derived title
	// (mp4.c's STR_FIELD_FROM_TAG / str_extract_name_from_path fallback).
	title := ctx.Charset.Convert([]byte(bi.title))
	if title == "" {
		title = info.Path[info.Base:]
		if i := strings.LastIndexByte(title, '.'); i >= 0 {
			title = title[:i]
		}
		title = ctx.Charset.Convert([]byte(title))
	}
	artist := ctx.Charset.Convert([]byte(bi.artist))

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("mp4: file row missing for %s: %w", info.Path, err)
	}

	if bi.width > 0 && bi.height > 0 {
		v := &database.VideoRecord{
			Title:     title,
			Container: "mp4",
			Length:    bi.durationSec,
			Width:     bi.width,
			Height:    bi.height,
		}
		if profile, ok := dlna.MatchVideoProfile(dlna.Descriptor{Container: "mp4", Width: bi.width, Height: bi.height}); ok {
			v.DLNAProfile = profile.Name
			v.DLNAMime = profile.MIME
		}
		return ctx.Store.UpsertVideo(existing.ID, v)
	}

	audio := &database.AudioRecord{
		Title:     title,
		Artist:    artist,
		Album:     ctx.Charset.Convert([]byte(bi.album)),
		Genre:     ctx.Charset.Convert([]byte(bi.genre)),
		TrackNo:   bi.trackNo,
		Codec:     "mp4",
		Container: "mp4",
		Length:    bi.durationSec,
	}
	if err := ctx.Store.ResolveIDs(audio); err != nil {
		return fmt.Errorf("mp4: resolve artist/album/genre: %w", err)
	}
	return ctx.Store.UpsertAudio(existing.ID, audio)
}

// walkBoxes reads top-level boxes looking for "moov", then its "mvhd" (for
// duration/timescale) and, recursively, a "trak"/"tkhd" (for a video
// track's fixed-point width/height).
func walkBoxes(f *os.File) (*boxInfo, error) {
	bi := &boxInfo{}
	found := false

	for {
		size, boxType, err := readBoxHeader(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if boxType != "moov" {
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}
		found = true
		if err := walkMoov(f, int64(size)-8, bi); err != nil {
			return nil, err
		}
		break
	}
	if !found {
		return nil, fmt.Errorf("no moov box found")
	}
	return bi, nil
}

func walkMoov(f *os.File, remaining int64, bi *boxInfo) error {
	end, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end += remaining

	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		if pos >= end {
			return nil
		}
		size, boxType, err := readBoxHeader(f)
		if err != nil {
			return err
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)

		switch boxType {
		case "mvhd":
			if err := readMvhd(f, bi); err != nil {
				return err
			}
		case "trak":
			readTrak(f, int64(size)-8, bi)
		case "udta":
			readUdta(f, int64(size)-8, bi)
		}

		if _, err := f.Seek(bodyStart+int64(size)-8, io.SeekStart); err != nil {
			return err
		}
	}
}

func readMvhd(f *os.File, bi *boxInfo) error {
	var versionFlags [4]byte
	if _, err := f.Read(versionFlags[:]); err != nil {
		return err
	}
	var timescale, duration uint32
	if versionFlags[0] == 1 {
		if _, err := f.Seek(16, io.SeekCurrent); err != nil { // two 64-bit times
			return err
		}
		var buf [8]byte
		if _, err := f.Read(buf[:]); err != nil {
			return err
		}
		timescale = binary.BigEndian.Uint32(buf[0:4])
		duration = binary.BigEndian.Uint32(buf[4:8])
	} else {
		var buf [16]byte
		if _, err := f.Read(buf[:]); err != nil {
			return err
		}
		timescale = binary.BigEndian.Uint32(buf[8:12])
		duration = binary.BigEndian.Uint32(buf[12:16])
	}
	if timescale > 0 {
		bi.durationSec = int(duration / timescale)
	}
	return nil
}

// readTrak looks for a tkhd box carrying non-zero width/height, which
// marks this as the video track (an audio-only track's tkhd has zero
// dimensions).
func readTrak(f *os.File, size int64, bi *boxInfo) {
	end, _ := f.Seek(0, io.SeekCurrent)
	end += size

	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		if pos >= end {
			return
		}
		innerSize, boxType, err := readBoxHeader(f)
		if err != nil {
			return
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)

		if boxType == "tkhd" {
			w, h := readTkhdDimensions(f)
			if w > 0 && h > 0 {
				bi.width, bi.height = w, h
			}
		}

		f.Seek(bodyStart+int64(innerSize)-8, io.SeekStart)
	}
}

func readTkhdDimensions(f *os.File) (int, int) {
	var versionFlags [4]byte
	if _, err := f.Read(versionFlags[:]); err != nil {
		return 0, 0
	}
	skip := int64(16 + 60) // two times + track id + reserved + duration + ... up to width/height, version 0 layout
	if versionFlags[0] == 1 {
		skip = int64(28 + 60)
	}
	if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
		return 0, 0
	}
	var wh [8]byte
	if _, err := f.Read(wh[:]); err != nil {
		return 0, 0
	}
	// Width/height are 16.16 fixed point; the integer part is the high
	// 16 bits of each 32-bit field.
	width := int(binary.BigEndian.Uint16(wh[0:2]))
	height := int(binary.BigEndian.Uint16(wh[4:6]))
	return width, height
}

// readUdta walks udta's children looking for a meta box, per mp4.c's walk
// down to the ilst atom that actually carries the tags.
func readUdta(f *os.File, size int64, bi *boxInfo) error {
	end, _ := f.Seek(0, io.SeekCurrent)
	end += size

	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		if pos >= end {
			return nil
		}
		innerSize, boxType, err := readBoxHeader(f)
		if err != nil {
			return err
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)

		if boxType == "meta" {
			if err := readMeta(f, int64(innerSize)-8, bi); err != nil {
				return err
			}
		}

		if _, err := f.Seek(bodyStart+int64(innerSize)-8, io.SeekStart); err != nil {
			return err
		}
	}
}

// readMeta skips the full-box version/flags header and walks meta's
// children looking for ilst.
func readMeta(f *os.File, size int64, bi *boxInfo) error {
	if size < 4 {
		return nil
	}
	if _, err := f.Seek(4, io.SeekCurrent); err != nil { // version + flags
		return err
	}
	size -= 4

	end, _ := f.Seek(0, io.SeekCurrent)
	end += size

	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		if pos >= end {
			return nil
		}
		innerSize, boxType, err := readBoxHeader(f)
		if err != nil {
			return err
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)

		if boxType == "ilst" {
			if err := readIlst(f, int64(innerSize)-8, bi); err != nil {
				return err
			}
		}

		if _, err := f.Seek(bodyStart+int64(innerSize)-8, io.SeekStart); err != nil {
			return err
		}
	}
}

// readIlst walks the tag-name-keyed children of ilst, each wrapping a
// single "data" atom, and fills in the well-known name/artist/album/
// genre/track-number tags (mp4.c's STR_FIELD_FROM_TAG table).
func readIlst(f *os.File, size int64, bi *boxInfo) error {
	end, _ := f.Seek(0, io.SeekCurrent)
	end += size

	for {
		pos, _ := f.Seek(0, io.SeekCurrent)
		if pos >= end {
			return nil
		}
		innerSize, boxType, err := readBoxHeader(f)
		if err != nil {
			return err
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)
		bodySize := int64(innerSize) - 8

		switch boxType {
		case "\xa9nam":
			bi.title, _ = readDataAtomString(f, bodySize)
		case "\xa9ART":
			bi.artist, _ = readDataAtomString(f, bodySize)
		case "\xa9alb":
			bi.album, _ = readDataAtomString(f, bodySize)
		case "\xa9gen":
			bi.genre, _ = readDataAtomString(f, bodySize)
		case "trkn":
			bi.trackNo, _ = readTrknData(f, bodySize)
		}

		if _, err := f.Seek(bodyStart+bodySize, io.SeekStart); err != nil {
			return err
		}
	}
}

// readDataAtomString reads the single nested "data" atom of a tag box and
// returns its UTF-8 payload, skipping the 8-byte type-indicator+locale
// header (mp4.c's ituneTagsExtractString).
func readDataAtomString(f *os.File, size int64) (string, error) {
	if size < 8 {
		return "", nil
	}
	dataSize, boxType, err := readBoxHeader(f)
	if err != nil {
		return "", err
	}
	if boxType != "data" || int64(dataSize)-8 > size-8 {
		return "", nil
	}
	payloadSize := int64(dataSize) - 8 - 8 // box header + type-indicator/locale
	if payloadSize <= 0 {
		return "", nil
	}
	if _, err := f.Seek(8, io.SeekCurrent); err != nil { // type indicator + locale
		return "", err
	}
	buf := make([]byte, payloadSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readTrknData reads trkn's nested data atom, an 8-byte binary structure
// whose second 16-bit field is the track number (mp4.c's track-number
// extraction off MP4GetMetadataTrack).
func readTrknData(f *os.File, size int64) (int, error) {
	if size < 8 {
		return 0, nil
	}
	dataSize, boxType, err := readBoxHeader(f)
	if err != nil {
		return 0, err
	}
	if boxType != "data" {
		return 0, nil
	}
	payloadSize := int64(dataSize) - 8 - 8
	if payloadSize < 6 {
		return 0, nil
	}
	if _, err := f.Seek(8, io.SeekCurrent); err != nil {
		return 0, err
	}
	buf := make([]byte, payloadSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, err
	}
	// Layout: 2 reserved bytes, 2-byte track number, 2-byte total tracks.
	return int(binary.BigEndian.Uint16(buf[2:4])), nil
}

func readBoxHeader(f *os.File) (size uint32, boxType string, err error) {
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return 0, "", err
	}
	return binary.BigEndian.Uint32(hdr[0:4]), string(hdr[4:8]), nil
}
