// Package wave parses a RIFF/WAVE container's fmt chunk, grounded on
// _examples/original_source/src/plugins/wave/wave.c — which, notably,
// derives the audio's title from the filename rather than any tag chunk.
package wave

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/dlna"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "wave"

var extensions = []string{".wav", ".wave"}

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

type fmtChunk struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	byteRate      uint32
	bitsPerSample uint16
}

func (p *Plugin) Parse(ctx *parser.Context, info parser.FileInfo, _ parser.MatchToken) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return fmt.Errorf("wave: open %s: %w", info.Path, err)
	}
	defer f.Close()

	fc, err := readFmtChunk(f)
	if err != nil {
		return fmt.Errorf("wave: %s: %w", info.Path, err)
	}

	title := info.Path[info.Base:]
	if i := strings.LastIndexByte(title, '.'); i >= 0 {
		title = title[:i]
	}

	audio := &database.AudioRecord{
		Title:        ctx.Charset.Convert([]byte(title)),
		Codec:        "pcm",
		Container:    "wave",
		Channels:     int(fc.channels),
		SamplingRate: int(fc.sampleRate),
		Bitrate:      int(fc.byteRate) * 8,
	}
	if audio.Title == "" {
		audio.Title = title
	}

	if profile, ok := dlna.MatchAudioProfile(dlna.Descriptor{Container: "wave"}); ok {
		audio.DLNAProfile = profile.Name
		audio.DLNAMime = profile.MIME
	}

	if err := ctx.Store.ResolveIDs(audio); err != nil {
		return fmt.Errorf("wave: resolve artist/album/genre: %w", err)
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("wave: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertAudio(existing.ID, audio)
}

// readFmtChunk walks RIFF chunks looking for "fmt ", skipping any chunk
// that isn't (notably "LIST" and "data", which can precede it in some
// writers' output).
func readFmtChunk(f *os.File) (*fmtChunk, error) {
	var riffHeader [12]byte
	if _, err := f.Read(riffHeader[:]); err != nil {
		return nil, err
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	for {
		var chunkHeader [8]byte
		if _, err := f.Read(chunkHeader[:]); err != nil {
			return nil, fmt.Errorf("fmt chunk not found: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		if chunkID == "fmt " {
			body := make([]byte, chunkSize)
			if _, err := f.Read(body); err != nil {
				return nil, err
			}
			if len(body) < 16 {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			return &fmtChunk{
				audioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				channels:      binary.LittleEndian.Uint16(body[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				byteRate:      binary.LittleEndian.Uint32(body[8:12]),
				bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}, nil
		}

		if _, err := f.Seek(int64(chunkSize+chunkSize%2), 1); err != nil {
			return nil, err
		}
	}
}
