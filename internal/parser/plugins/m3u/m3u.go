// Package m3u counts a playlist's entries without resolving them against
// the files table (spec.md's Non-goal of entry-level playlist indexing).
// Grounded on _examples/original_source/src/plugins/m3u/m3u.c's
// line-classification state machine.
package m3u

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "m3u"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"multimedia"} }
func (p *Plugin) Order() int           { return 10 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	if strings.HasSuffix(strings.ToLower(info.Path), ".m3u") || strings.HasSuffix(strings.ToLower(info.Path), ".m3u8") {
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
		return fmt.Errorf("m3u: open %s: %w", info.Path, err)
	}
	defer f.Close()

	n := countEntries(f)

	title := info.Path[info.Base:]
	if i := strings.LastIndexByte(title, '.'); i >= 0 {
		title = title[:i]
	}

	pl := &database.PlaylistRecord{Title: ctx.Charset.Convert([]byte(title)), NEntries: n}
	if pl.Title == "" {
		pl.Title = title
	}

	existing, err := ctx.Store.GetFileByPath(info.Path)
	if err != nil {
		return fmt.Errorf("m3u: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertPlaylist(existing.ID, pl)
}

// countEntries classifies each line as empty, a "#"-prefixed comment (or
// #EXTM3U/#EXTINF directive), or an entry, and counts the entries —
// mirroring the original's IS_EMPTY/IS_ENTRY/IS_COMMENT state machine.
func countEntries(f *os.File) int {
	scanner := bufio.NewScanner(f)
	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n++
	}
	return n
}
