// Package generic is the last-resort fallback plugin: it claims any file
// under a recognized multimedia extension that no more specific plugin
// claimed first, grounded on
// _examples/original_source/src/plugins/generic/generic.c's role in the
// original (there, backed by libavformat; here, by nothing — a file it
// claims gets only the scanner's files/category row, with no per-format
// metadata, since decoding
// every remaining container is exactly the byte-level work spec.md places
// out of scope).
package generic

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "generic"

var audioExts = map[string]bool{".mpa": true, ".aac": true, ".opus": true, ".ac3": true}
var videoExts = map[string]bool{".mkv": true, ".avi": true, ".mpeg": true, ".mpg": true, ".webm": true, ".ts": true}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"audio", "video", "multimedia"} }

// Order is math.MaxInt32 so every format-specific plugin gets first
// refusal; generic only ever sees what nothing else claimed.
func (p *Plugin) Order() int { return math.MaxInt32 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	ext := strings.ToLower(filepath.Ext(info.Path))
	if audioExts[ext] {
		return "audio", true
	}
	if videoExts[ext] {
		return "video", true
	}
	return nil, false
}

func (p *Plugin) Setup(*parser.Context) error { return nil }
func (p *Plugin) Start() error                { return nil }
func (p *Plugin) Finish() error                { return nil }
func (p *Plugin) Close() error                 { return nil }

// Parse writes no per-category row: the matching files row (already
// written by the scanner with category set from the matched token) is all
// a file that only generic claims gets. A future decoder plugin for one of
// these extensions would outrank generic by Order and take over.
func (p *Plugin) Parse(ctx *parser.Context, info parser.FileInfo, token parser.MatchToken) error {
	return nil
}
