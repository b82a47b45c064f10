// Package ogg reads an Ogg/Vorbis file's identification header and, from
// the following comment header packet, its TITLE/ARTIST/ALBUM/GENRE/
// TRACKNUMBER Vorbis comments, grounded on
// _examples/original_source/src/plugins/ogg/ogg.c (there via
// libvorbis's vorbis_synthesis_headerin/vorbis_comment_query).
package ogg

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

const name = "ogg"

// maxHeaderPages bounds how many Ogg pages are read while hunting for the
// three Vorbis header packets (id, comment, setup); real-world streams
// keep them within the first handful of pages even with large comment
// blocks (embedded cover art aside, which this plugin has no need to
// read past).
const maxHeaderPages = 64

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"audio"} }
func (p *Plugin) Order() int           { return 20 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	if strings.HasSuffix(strings.ToLower(info.Path), ".ogg") || strings.HasSuffix(strings.ToLower(info.Path), ".oga") {
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
		return fmt.Errorf("ogg: open %s: %w", info.Path, err)
	}
	defer f.Close()

	skipLeadingID3Tag(f)

	pr := &packetReader{f: f}
	idPacket, err := pr.next()
	if err != nil {
		return fmt.Errorf("ogg: %s: %w", info.Path, err)
	}
	sampleRate, channels, err := parseIdentHeader(idPacket)
	if err != nil {
		return fmt.Errorf("ogg: %s: %w", info.Path, err)
	}

	var tags vorbisTags
	if commentPacket, err := pr.next(); err == nil {
		tags = parseCommentHeader(commentPacket)
	}

	title := ctx.Charset.Convert([]byte(tags.title))
	if title == "" {
		title = info.Path[info.Base:]
		if i := strings.LastIndexByte(title, '.'); i >= 0 {
			title = title[:i]
		}
		title = ctx.Charset.Convert([]byte(title))
	}

	audio := &database.AudioRecord{
		Title:        title,
		Artist:       ctx.Charset.Convert([]byte(tags.artist)),
		Album:        ctx.Charset.Convert([]byte(tags.album)),
		Genre:        ctx.Charset.Convert([]byte(tags.genre)),
		TrackNo:      tags.trackno,
		Codec:        "vorbis",
		Container:    "ogg",
		Channels:     channels,
		SamplingRate: sampleRate,
	}

	if err := ctx.Store.ResolveIDs(audio); err != nil {
		return fmt.Errorf("ogg: resolve artist/album/genre: %w", err)
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("ogg: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertAudio(existing.ID, audio)
}

// skipLeadingID3Tag seeks past an ID3v2 tag preceding the Ogg stream,
// which some taggers prepend even though it isn't part of the Ogg
// container format (ogg.c's _id3_tag_size).
func skipLeadingID3Tag(f *os.File) {
	var hdr [10]byte
	n, _ := io.ReadFull(f, hdr[:])
	if n == 10 && hdr[0] == 'I' && hdr[1] == 'D' && hdr[2] == '3' && hdr[3] < 0xFF {
		size := 10 + (int(hdr[6])<<21 | int(hdr[7])<<14 | int(hdr[8])<<7 | int(hdr[9]))
		f.Seek(int64(size), io.SeekStart)
		return
	}
	f.Seek(0, io.SeekStart)
}

func parseIdentHeader(packet []byte) (sampleRate, channels int, err error) {
	if len(packet) < 16 || packet[0] != 1 || string(packet[1:7]) != "vorbis" {
		return 0, 0, fmt.Errorf("first packet is not a Vorbis identification header")
	}
	channels = int(packet[11])
	sampleRate = int(binary.LittleEndian.Uint32(packet[12:16]))
	return sampleRate, channels, nil
}

type vorbisTags struct {
	title, artist, album, genre string
	trackno                     int
}

// parseCommentHeader reads the Vorbis comment header packet (type byte 3,
// "vorbis", vendor string, comment count, "KEY=value" list), per the
// Vorbis I spec's comment header layout — the same fields ogg.c queries
// via vorbis_comment_query.
func parseCommentHeader(packet []byte) vorbisTags {
	var tags vorbisTags
	if len(packet) < 7 || packet[0] != 3 || string(packet[1:7]) != "vorbis" {
		return tags
	}
	body := packet[7:]
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
		if entryLen < 0 || off+entryLen > len(body) {
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

// packetReader demultiplexes Ogg pages into the logical packet stream,
// reassembling a packet that spans a page boundary (a lacing value of
// 255 means "more to come"). It only ever looks at the single logical
// stream starting at the first page it sees, which is all a Vorbis file
// with one elementary stream has.
type packetReader struct {
	f         *os.File
	pending   [][]byte
	partial   []byte
	pagesRead int
}

func (pr *packetReader) next() ([]byte, error) {
	for len(pr.pending) == 0 {
		if pr.pagesRead >= maxHeaderPages {
			return nil, fmt.Errorf("no more Vorbis header packets within first %d pages", maxHeaderPages)
		}
		if err := pr.readPage(); err != nil {
			return nil, err
		}
	}
	pkt := pr.pending[0]
	pr.pending = pr.pending[1:]
	return pkt, nil
}

func (pr *packetReader) readPage() error {
	var hdr [27]byte
	if _, err := io.ReadFull(pr.f, hdr[:]); err != nil {
		return err
	}
	if string(hdr[0:4]) != "OggS" {
		return fmt.Errorf("not an Ogg stream (bad capture pattern)")
	}
	pr.pagesRead++

	segCount := int(hdr[26])
	segTable := make([]byte, segCount)
	if _, err := io.ReadFull(pr.f, segTable); err != nil {
		return err
	}

	start := 0
	for start < segCount {
		runLen := 0
		end := start
		for end < segCount {
			runLen += int(segTable[end])
			if segTable[end] < 255 {
				end++
				break
			}
			end++
		}
		buf := make([]byte, runLen)
		if _, err := io.ReadFull(pr.f, buf); err != nil {
			return err
		}

		// A run that ended because we hit a lacing value < 255 is a
		// complete packet; a run that used up the whole segment table
		// while the last value was still 255 continues on the next page.
		lastUsedIsContinued := segTable[end-1] == 255

		if lastUsedIsContinued {
			pr.partial = append(pr.partial, buf...)
		} else {
			pkt := append(pr.partial, buf...)
			pr.partial = nil
			pr.pending = append(pr.pending, pkt)
		}
		start = end
	}
	return nil
}
