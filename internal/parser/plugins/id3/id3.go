// Package id3 parses MP3 files: their ID3v2 (falling back to ID3v1) tag
// block and the first MPEG audio frame header, grounded on
// _examples/original_source/src/plugins/id3/id3.c.
package id3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/dlna"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "id3"

var extensions = []string{".mp3", ".mp2"}

// mpeg1Layer3Bitrates is the Layer III bitrate table in kbps, indexed by the
// 4-bit bitrate index of an MPEG1 frame header (index 0 is "free", 15 is
// reserved, both treated as unknown).
var mpeg1Layer3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// mpeg1SampleRates mirrors the original's combined MP3/AAC frequency table,
// indexed by the 2-bit MPEG1 sampling-rate index (0..2 are the only values
// a Layer III frame header carries).
var mpeg1SampleRates = [4]int{44100, 48000, 32000}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"audio"} }
func (p *Plugin) Order() int           { return 10 }

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
		return fmt.Errorf("id3: open %s: %w", info.Path, err)
	}
	defer f.Close()

	tags, _ := readID3v2(f)
	if tags == nil {
		tags = readID3v1(f)
	}
	if tags == nil {
		tags = &tagSet{}
	}
	if tags.title == "" {
		tags.title = titleFromPath(info)
	}

	hdr, _ := readMPEGHeader(f)

	audio := &database.AudioRecord{
		Title:        ctx.Charset.Convert([]byte(tags.title)),
		Artist:       ctx.Charset.Convert([]byte(tags.artist)),
		Album:        ctx.Charset.Convert([]byte(tags.album)),
		Genre:        ctx.Charset.Convert([]byte(tags.genre)),
		TrackNo:      tags.trackno,
		Codec:        hdr.codec,
		Container:    "mp3",
		Bitrate:      hdr.bitrate,
		SamplingRate: hdr.samplingRate,
		Channels:     hdr.channels,
	}
	if audio.Title == "" {
		audio.Title = tags.title
	}

	if profile, ok := dlna.MatchAudioProfile(dlna.Descriptor{
		Container: "mp3", Codec: hdr.codec, Channels: hdr.channels,
		SamplingRate: hdr.samplingRate, Bitrate: hdr.bitrate,
	}); ok {
		audio.DLNAProfile = profile.Name
		audio.DLNAMime = profile.MIME
	}

	if err := ctx.Store.ResolveIDs(audio); err != nil {
		return fmt.Errorf("id3: resolve artist/album/genre: %w", err)
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("id3: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertAudio(existing.ID, audio)
}

func titleFromPath(info parser.FileInfo) string {
	name := info.Path[info.Base:]
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

type tagSet struct {
	title, artist, album, genre string
	trackno                     int
}

type mpegHeader struct {
	codec        string
	bitrate      int
	samplingRate int
	channels     int
}

// readMPEGHeader scans for the first valid MPEG1 Layer III frame sync
// within the first 64KiB (past any ID3v2 block) and decodes its bitrate,
// sample rate, and channel mode, per id3.c's frame-header bit layout.
func readMPEGHeader(f *os.File) (mpegHeader, error) {
	start := int64(0)
	var tag [10]byte
	if _, err := f.ReadAt(tag[:], 0); err == nil && string(tag[0:3]) == "ID3" {
		start = 10 + int64(synchsafeToInt(tag[6:10]))
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return mpegHeader{}, err
	}
	buf := make([]byte, 64*1024)
	n, _ := io.ReadFull(f, buf)
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		versionBits := (buf[i+1] >> 3) & 0x3
		layerBits := (buf[i+1] >> 1) & 0x3
		if versionBits != 0x3 || layerBits != 0x1 { // MPEG1, Layer III only
			continue
		}
		bitrateIdx := (buf[i+2] >> 4) & 0xF
		rateIdx := (buf[i+2] >> 2) & 0x3
		channelMode := (buf[i+3] >> 6) & 0x3
		if bitrateIdx == 0 || bitrateIdx == 0xF || rateIdx == 0x3 {
			continue
		}

		channels := 2
		if channelMode == 0x3 {
			channels = 1
		}

		return mpegHeader{
			codec:        "mpeg1layer3",
			bitrate:      int(mpeg1Layer3Bitrates[bitrateIdx]) * 1000,
			samplingRate: mpeg1SampleRates[rateIdx],
			channels:     channels,
		}, nil
	}
	return mpegHeader{}, errors.New("id3: no MPEG frame sync found")
}

// readID3v2 parses the ID3v2.3/v2.4 header and its TIT2/TPE1/TALB/TCON/
// TRCK text frames. Unsynchronization and extended headers are not
// unwound (spec.md leaves byte-level format internals out of scope beyond
// what these common frames need).
func readID3v2(f *os.File) (*tagSet, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [10]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, err
	}
	if string(hdr[0:3]) != "ID3" {
		return nil, errors.New("id3: no ID3v2 tag")
	}
	major := hdr[3]
	size := synchsafeToInt(hdr[6:10])
	body := make([]byte, size)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil, fmt.Errorf("id3: read ID3v2 body: %w", err)
	}

	tags := &tagSet{}
	off := 0
	for off+10 <= len(body) {
		id := string(body[off : off+4])
		if id == "\x00\x00\x00\x00" {
			break
		}
		var frameSize int
		if major >= 4 {
			frameSize = synchsafeToInt(body[off+4 : off+8])
		} else {
			frameSize = int(binary.BigEndian.Uint32(body[off+4 : off+8]))
		}
		off += 10
		if off+frameSize > len(body) || frameSize < 0 {
			break
		}
		payload := body[off : off+frameSize]
		off += frameSize

		switch id {
		case "TIT2":
			tags.title = decodeTextFrame(payload)
		case "TPE1":
			tags.artist = decodeTextFrame(payload)
		case "TALB":
			tags.album = decodeTextFrame(payload)
		case "TCON":
			tags.genre = resolveGenre(decodeTextFrame(payload))
		case "TRCK":
			tags.trackno = firstInt(decodeTextFrame(payload))
		}
	}
	return tags, nil
}

// decodeTextFrame strips the ID3v2 text-encoding byte and any trailing
// NUL padding; actual charset decoding happens later via the shared
// charset.Converter so every plugin goes through one code path.
func decodeTextFrame(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	text := payload[1:]
	return strings.TrimRight(string(text), "\x00")
}

func synchsafeToInt(b []byte) int {
	return int(b[0])<<21 | int(b[1])<<14 | int(b[2])<<7 | int(b[3])
}

func firstInt(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "/ "); i >= 0 {
		s = s[:i]
	}
	n, _ := strconv.Atoi(s)
	return n
}

// readID3v1 reads the fixed 128-byte trailer tag when no ID3v2 block is
// present.
func readID3v1(f *os.File) *tagSet {
	info, err := f.Stat()
	if err != nil || info.Size() < 128 {
		return nil
	}
	buf := make([]byte, 128)
	if _, err := f.ReadAt(buf, info.Size()-128); err != nil {
		return nil
	}
	if string(buf[0:3]) != "TAG" {
		return nil
	}

	trim := func(b []byte) string { return strings.TrimRight(string(b), "\x00 ") }
	tags := &tagSet{
		title:  trim(buf[3:33]),
		artist: trim(buf[33:63]),
		album:  trim(buf[63:93]),
	}
	if buf[125] == 0 && buf[126] != 0 {
		tags.trackno = int(buf[126])
	}
	if int(buf[127]) < len(id3v1Genres) {
		tags.genre = id3v1Genres[buf[127]]
	}
	return tags
}

func resolveGenre(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "(") {
		end := strings.IndexByte(raw, ')')
		if end > 1 {
			if idx, err := strconv.Atoi(raw[1:end]); err == nil && idx < len(id3v1Genres) {
				return id3v1Genres[idx]
			}
		}
	}
	return raw
}

// id3v1Genres is the standard 0-based ID3v1 genre table, truncated to the
// original spec's 80 canonical entries (no Winamp extensions), which TCON's
// "(N)" numeric form is resolved against.
var id3v1Genres = []string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel",
	"Noise", "AlternRock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic",
	"Darkwave", "Techno-Industrial", "Electronic", "Pop-Folk",
	"Eurodance", "Dream", "Southern Rock", "Comedy", "Cult", "Gangsta",
	"Top 40", "Christian Rap", "Pop/Funk", "Jungle", "Native American",
	"Cabaret", "New Wave", "Psychedelic", "Rave", "Showtunes", "Trailer",
	"Lo-Fi", "Tribal", "Acid Punk", "Acid Jazz", "Polka", "Retro",
	"Musical", "Rock & Roll", "Hard Rock",
}
