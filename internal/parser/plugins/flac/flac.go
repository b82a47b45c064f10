// Package flac reads a FLAC file's STREAMINFO metadata block and, when
// present, its VORBIS_COMMENT block's TITLE/ARTIST/ALBUM/GENRE/
// TRACKNUMBER fields, grounded on
// _examples/original_source/src/plugins/flac/flac.c (there via
// libFLAC's FLAC__metadata_get_streaminfo/get_tags).
package flac

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "flac"

const blockTypeVorbisComment = 4

var magic = [4]byte{'f', 'L', 'a', 'C'}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"audio"} }
func (p *Plugin) Order() int           { return 20 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	if strings.HasSuffix(strings.ToLower(info.Path), ".flac") {
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
		return fmt.Errorf("flac: open %s: %w", info.Path, err)
	}
	defer f.Close()

	si, tags, err := readMetadataBlocks(f)
	if err != nil {
		return fmt.Errorf("flac: %s: %w", info.Path, err)
	}

	title := ctx.Charset.Convert([]byte(tags.title))
	if title == "" {
		title = info.Path[info.Base:]
		if i := strings.LastIndexByte(title, '.'); i >= 0 {
			title = title[:i]
		}
		title = ctx.Charset.Convert([]byte(title))
	}

	length := 0
	if si.sampleRate > 0 {
		length = int(si.totalSamples / uint64(si.sampleRate))
	}

	audio := &database.AudioRecord{
		Title:        title,
		Artist:       ctx.Charset.Convert([]byte(tags.artist)),
		Album:        ctx.Charset.Convert([]byte(tags.album)),
		Genre:        ctx.Charset.Convert([]byte(tags.genre)),
		TrackNo:      tags.trackno,
		Codec:        "flac",
		Container:    "flac",
		Channels:     si.channels,
		SamplingRate: si.sampleRate,
		Length:       length,
	}

	if err := ctx.Store.ResolveIDs(audio); err != nil {
		return fmt.Errorf("flac: resolve artist/album/genre: %w", err)
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("flac: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertAudio(existing.ID, audio)
}

type streamInfo struct {
	sampleRate   int
	channels     int
	totalSamples uint64
}

type vorbisTags struct {
	title, artist, album, genre string
	trackno                     int
}

// readMetadataBlocks reads the mandatory first metadata block — always
// STREAMINFO, immediately after the 4-byte "fLaC" magic — then continues
// through the following blocks looking for a VORBIS_COMMENT block, until
// the last-metadata-block flag is seen or an AUDIO frame starts.
func readMetadataBlocks(f *os.File) (*streamInfo, *vorbisTags, error) {
	var sig [4]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil || sig != magic {
		return nil, nil, fmt.Errorf("not a FLAC stream (bad magic)")
	}

	si, last, err := readStreamInfoBlock(f)
	if err != nil {
		return nil, nil, err
	}

	tags := &vorbisTags{}
	for !last {
		blockLast, blockType, blockSize, err := readBlockHeader(f)
		if err != nil {
			break
		}
		last = blockLast
		if blockType == blockTypeVorbisComment {
			body := make([]byte, blockSize)
			if _, err := io.ReadFull(f, body); err != nil {
				break
			}
			*tags = parseVorbisComment(body)
			continue
		}
		if _, err := f.Seek(int64(blockSize), io.SeekCurrent); err != nil {
			break
		}
	}

	return si, tags, nil
}

func readBlockHeader(f *os.File) (last bool, blockType int, size int, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return false, 0, 0, err
	}
	last = hdr[0]&0x80 != 0
	blockType = int(hdr[0] & 0x7F)
	size = int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
	return last, blockType, size, nil
}

func readStreamInfoBlock(f *os.File) (*streamInfo, bool, error) {
	last, blockType, blockSize, err := readBlockHeader(f)
	if err != nil {
		return nil, false, err
	}
	if blockType != 0 {
		return nil, false, fmt.Errorf("expected STREAMINFO as first metadata block")
	}

	body := make([]byte, blockSize)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil, false, err
	}
	if len(body) < 18 {
		return nil, false, fmt.Errorf("truncated STREAMINFO block")
	}

	// Bytes 10..17 pack sample rate (20 bits), channel count minus one
	// (3 bits), bits-per-sample minus one (5 bits), and the 36-bit total
	// sample count, per the FLAC format spec's STREAMINFO layout.
	packed := binary.BigEndian.Uint64(body[10:18])
	sampleRate := int(packed >> 44)
	channels := int((packed>>41)&0x7) + 1
	totalSamples := packed & 0xFFFFFFFFF

	return &streamInfo{sampleRate: sampleRate, channels: channels, totalSamples: totalSamples}, last, nil
}

// parseVorbisComment reads the Vorbis comment header's vendor string and
// "KEY=value" comment list (both length-prefixed little-endian, per the
// Vorbis comment spec flac.c reads via FLAC__metadata_get_tags), keeping
// the fields flac.c keeps.
func parseVorbisComment(body []byte) vorbisTags {
	var tags vorbisTags
	if len(body) < 4 {
		return tags
	}
	vendorLen := binary.LittleEndian.Uint32(body[0:4])
	off := 4 + int(vendorLen)
	if off+4 > len(body) {
		return tags
	}
	count := binary.LittleEndian.Uint32(body[off : off+4])
	off += 4

	for i := uint32(0); i < count && off+4 <= len(body); i++ {
		entryLen := int(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
		if off+entryLen > len(body) {
			break
		}
		entry := string(body[off : off+entryLen])
		off += entryLen

		switch {
		case strings.HasPrefix(strings.ToUpper(entry), "TITLE="):
			tags.title = entry[len("TITLE="):]
		case strings.HasPrefix(strings.ToUpper(entry), "ARTIST="):
			tags.artist = entry[len("ARTIST="):]
		case strings.HasPrefix(strings.ToUpper(entry), "ALBUM="):
			tags.album = entry[len("ALBUM="):]
		case strings.HasPrefix(strings.ToUpper(entry), "GENRE="):
			tags.genre = entry[len("GENRE="):]
		case strings.HasPrefix(strings.ToUpper(entry), "TRACKNUMBER="):
			if n, err := strconv.Atoi(strings.TrimSpace(entry[len("TRACKNUMBER="):])); err == nil {
				tags.trackno = n
			}
		}
	}
	return tags
}
