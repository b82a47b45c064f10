// Package asf walks a Microsoft ASF/WMV/WMA file's top-level object list
// far enough to classify the stream as audio or video and read the
// Content Description Object's title/artist and the Extended Content
// Description Object's WM/AlbumTitle, WM/Genre and WM/TrackNumber
// attributes, grounded on
// _examples/original_source/src/plugins/asf/asf.c.
package asf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "asf"

// Fixed 16-byte object GUIDs from the ASF specification (asf.c's
// header_guid/file_properties_guid/etc, reproduced byte-for-byte).
var (
	headerGUID                    = mustGUID("\x30\x26\xB2\x75\x8E\x66\xCF\x11\xA6\xD9\x00\xAA\x00\x62\xCE\x6C")
	filePropertiesGUID             = mustGUID("\xA1\xDC\xAB\x8C\x47\xA9\xCF\x11\x8E\xE4\x00\xC0\x0C\x20\x53\x65")
	streamPropertiesGUID           = mustGUID("\x91\x07\xDC\xB7\xB7\xA9\xCF\x11\x8E\xE6\x00\xC0\x0C\x20\x53\x65")
	streamTypeAudioGUID            = mustGUID("\x40\x9E\x69\xF8\x4D\x5B\xCF\x11\xA8\xFD\x00\x80\x5F\x5C\x44\x2B")
	streamTypeVideoGUID            = mustGUID("\xC0\xEF\x19\xBC\x4D\x5B\xCF\x11\xA8\xFD\x00\x80\x5F\x5C\x44\x2B")
	contentDescriptionGUID         = mustGUID("\x33\x26\xB2\x75\x8E\x66\xCF\x11\xA6\xD9\x00\xAA\x00\x62\xCE\x6C")
	extendedContentDescriptionGUID = mustGUID("\x40\xA4\xD0\xD2\x07\xE3\xD2\x11\x97\xF0\x00\xA0\xC9\x5E\xA8\x50")
)

func mustGUID(s string) [16]byte {
	var g [16]byte
	copy(g[:], s)
	return g
}

const (
	attrTypeUnicode = 0
	attrTypeBytes   = 1
	attrTypeBool    = 2
	attrTypeDword   = 3
	attrTypeQword   = 4
	attrTypeWord    = 5
	attrTypeGUID    = 6
)

var (
	attrNameWMAlbumTitle  = "WM/AlbumTitle"
	attrNameWMGenre       = "WM/Genre"
	attrNameWMTrackNumber = "WM/TrackNumber"
)

var extensions = []string{".asf", ".wmv", ".wma"}

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

type asfInfo struct {
	title, artist, album, genre string
	trackNo                     int
	streamIsAudio                bool
	streamIsVideo                bool
}

func (p *Plugin) Parse(ctx *parser.Context, info parser.FileInfo, _ parser.MatchToken) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return fmt.Errorf("asf: open %s: %w", info.Path, err)
	}
	defer f.Close()

	var guid [16]byte
	if _, err := io.ReadFull(f, guid[:]); err != nil || guid != headerGUID {
		return fmt.Errorf("asf: %s: not an ASF stream (bad header GUID)", info.Path)
	}

	if _, err := readQword(f); err != nil { // header object size
		return fmt.Errorf("asf: %s: %w", info.Path, err)
	}
	numObjects, err := readDword(f)
	if err != nil {
		return fmt.Errorf("asf: %s: %w", info.Path, err)
	}
	if _, err := f.Seek(2, io.SeekCurrent); err != nil { // reserved
		return fmt.Errorf("asf: %s: %w", info.Path, err)
	}

	asfInfo, err := walkTopLevelObjects(f, numObjects)
	if err != nil {
		return fmt.Errorf("asf: %s: %w", info.Path, err)
	}

	title := asfInfo.title
	if title == "" {
		title = info.Path[info.Base:]
		if i := strings.LastIndexByte(title, '.'); i >= 0 {
			title = title[:i]
		}
	}
	title = ctx.Charset.Convert([]byte(title))
	artist := ctx.Charset.Convert([]byte(asfInfo.artist))

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("asf: file row missing for %s: %w", info.Path, err)
	}

	// When the stream type couldn't be determined from a stream
	// properties object, fall back to the extension (asf.c's "try to
	// define stream type by extension").
	isAudio := asfInfo.streamIsAudio
	isVideo := asfInfo.streamIsVideo
	if !isAudio && !isVideo {
		lower := strings.ToLower(info.Path)
		isAudio = strings.HasSuffix(lower, ".wma")
		isVideo = strings.HasSuffix(lower, ".wmv") || strings.HasSuffix(lower, ".asf")
	}

	if isAudio {
		audio := &database.AudioRecord{
			Title:     title,
			Artist:    artist,
			Album:     ctx.Charset.Convert([]byte(asfInfo.album)),
			Genre:     ctx.Charset.Convert([]byte(asfInfo.genre)),
			TrackNo:   asfInfo.trackNo,
			Codec:     "wma",
			Container: "asf",
		}
		if err := ctx.Store.ResolveIDs(audio); err != nil {
			return fmt.Errorf("asf: resolve artist/album/genre: %w", err)
		}
		return ctx.Store.UpsertAudio(existing.ID, audio)
	}

	return ctx.Store.UpsertVideo(existing.ID, &database.VideoRecord{Title: title, Container: "asf"})
}

// walkTopLevelObjects iterates the header object's numObjects children,
// each a 16-byte GUID followed by an 8-byte size, dispatching the ones
// this plugin cares about and skipping the rest (asf.c's main _parse
// loop).
func walkTopLevelObjects(f *os.File, numObjects uint32) (*asfInfo, error) {
	info := &asfInfo{}

	for i := uint32(0); i < numObjects; i++ {
		var guid [16]byte
		if _, err := io.ReadFull(f, guid[:]); err != nil {
			return info, nil
		}
		size, err := readQword(f)
		if err != nil {
			return info, nil
		}
		bodyStart, _ := f.Seek(0, io.SeekCurrent)

		switch guid {
		case streamPropertiesGUID:
			var streamGUID [16]byte
			if _, err := io.ReadFull(f, streamGUID[:]); err == nil {
				if streamGUID == streamTypeAudioGUID {
					info.streamIsAudio = true
				} else if streamGUID == streamTypeVideoGUID {
					info.streamIsVideo = true
				}
			}
		case contentDescriptionGUID:
			parseContentDescription(f, info)
		case extendedContentDescriptionGUID:
			parseExtendedContentDescription(f, info)
		}

		if _, err := f.Seek(bodyStart+int64(size)-24, io.SeekStart); err != nil {
			return info, nil
		}
	}
	return info, nil
}

// parseContentDescription reads the Content Description Object's five
// length-prefixed UTF-16LE fields, keeping only title and artist
// (copyright/comment/rating are skipped, per asf.c).
func parseContentDescription(f *os.File, info *asfInfo) {
	titleLen, _ := readWord(f)
	artistLen, _ := readWord(f)
	copyrightLen, _ := readWord(f)
	commentLen, _ := readWord(f)
	ratingLen, _ := readWord(f)

	info.title = readUTF16String(f, int(titleLen))
	info.artist = readUTF16String(f, int(artistLen))
	f.Seek(int64(copyrightLen)+int64(commentLen)+int64(ratingLen), io.SeekCurrent)
}

// parseExtendedContentDescription walks the Extended Content Description
// Object's name/type/value attribute list, picking out WM/AlbumTitle,
// WM/Genre and WM/TrackNumber and skipping everything else.
func parseExtendedContentDescription(f *os.File, info *asfInfo) {
	count, _ := readWord(f)
	for i := 0; i < int(count); i++ {
		nameLen, _ := readWord(f)
		attrName := readUTF16String(f, int(nameLen))
		attrType, _ := readWord(f)
		attrSize, _ := readWord(f)

		if attrType != attrTypeUnicode {
			skipAttributeData(f, int(attrType), int(attrSize))
			continue
		}

		switch attrName {
		case attrNameWMAlbumTitle:
			info.album = readUTF16String(f, int(attrSize))
		case attrNameWMGenre:
			info.genre = readUTF16String(f, int(attrSize))
		case attrNameWMTrackNumber:
			trackno := readUTF16String(f, int(attrSize))
			if n, err := strconv.Atoi(strings.TrimSpace(trackno)); err == nil {
				info.trackNo = n
			}
		default:
			f.Seek(int64(attrSize), io.SeekCurrent)
		}
	}
}

func skipAttributeData(f *os.File, attrType int, attrSize int) {
	switch attrType {
	case attrTypeWord:
		f.Seek(2, io.SeekCurrent)
	case attrTypeBool, attrTypeDword:
		f.Seek(4, io.SeekCurrent)
	case attrTypeQword:
		f.Seek(8, io.SeekCurrent)
	case attrTypeBytes, attrTypeGUID:
		f.Seek(int64(attrSize), io.SeekCurrent)
	}
}

// readUTF16String reads count raw bytes and decodes them as UTF-16LE,
// dropping a trailing NUL code unit (ASF strings are NUL-terminated).
func readUTF16String(f *os.File, count int) string {
	s := readUTF16Bytes(f, count)
	return strings.TrimRight(s, "\x00")
}

func readUTF16Bytes(f *os.File, count int) string {
	if count <= 0 {
		return ""
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(f, buf); err != nil {
		return ""
	}
	if len(buf) < 2 {
		return ""
	}
	units := make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	var b bytes.Buffer
	for _, r := range utf16.Decode(units) {
		b.WriteRune(r)
	}
	return b.String()
}

func readWord(f *os.File) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readDword(f *os.File) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readQword(f *os.File) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
