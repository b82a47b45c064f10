// Package pls counts entries in a Winamp .pls playlist by its
// NumberOfEntries key when present, falling back to counting FileN= lines,
// grounded on the m3u/pls pairing in
// _examples/original_source/src/plugins/pls.
package pls

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/parser"
)

const name = "pls"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string         { return name }
func (p *Plugin) Categories() []string { return []string{"multimedia"} }
func (p *Plugin) Order() int           { return 10 }

func (p *Plugin) Match(info parser.FileInfo) (parser.MatchToken, bool) {
	if strings.HasSuffix(strings.ToLower(info.Path), ".pls") {
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
		return fmt.Errorf("pls: open %s: %w", info.Path, err)
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
		return fmt.Errorf("pls: file row missing for %s: %w", info.Path, err)
	}
	return ctx.Store.UpsertPlaylist(existing.ID, pl)
}

func countEntries(f *os.File) int {
	scanner := bufio.NewScanner(f)
	fileLines := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "numberofentries" {
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				return n
			}
		}
		if strings.HasPrefix(key, "file") {
			fileLines++
		}
	}
	return fileLines
}
