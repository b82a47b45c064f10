package parser

import (
	"math"
	"testing"
)

type stubPlugin struct {
	name  string
	order int
	ext   string
}

func (s *stubPlugin) Name() string         { return s.name }
func (s *stubPlugin) Categories() []string { return []string{"audio"} }
func (s *stubPlugin) Order() int           { return s.order }
func (s *stubPlugin) Match(info FileInfo) (MatchToken, bool) {
	if len(info.Path) >= len(s.ext) && info.Path[len(info.Path)-len(s.ext):] == s.ext {
		return s.name, true
	}
	return nil, false
}
func (s *stubPlugin) Setup(*Context) error                          { return nil }
func (s *stubPlugin) Start() error                                  { return nil }
func (s *stubPlugin) Parse(*Context, FileInfo, MatchToken) error     { return nil }
func (s *stubPlugin) Finish() error                                 { return nil }
func (s *stubPlugin) Close() error                                  { return nil }

func TestRegistry_OrdersByOrderField(t *testing.T) {
	generic := &stubPlugin{name: "generic", order: math.MaxInt32, ext: ".mp3"}
	id3 := &stubPlugin{name: "id3", order: 10, ext: ".mp3"}

	r := NewRegistry(generic, id3)
	if r.Plugins()[0].Name() != "id3" {
		t.Fatalf("expected id3 (lower Order) first, got %s", r.Plugins()[0].Name())
	}
}

func TestRegistry_Match_FirstClaimWins(t *testing.T) {
	generic := &stubPlugin{name: "generic", order: math.MaxInt32, ext: ".mp3"}
	id3 := &stubPlugin{name: "id3", order: 10, ext: ".mp3"}
	r := NewRegistry(generic, id3)

	p, tok, ok := r.Match(FileInfo{Path: "/music/song.mp3"})
	if !ok || p.Name() != "id3" || tok != "id3" {
		t.Fatalf("expected id3 to claim the file first, got %v tok=%v ok=%v", p, tok, ok)
	}
}

func TestRegistry_Match_NoPluginClaims(t *testing.T) {
	r := NewRegistry(&stubPlugin{name: "id3", order: 10, ext: ".mp3"})
	_, _, ok := r.Match(FileInfo{Path: "/docs/readme.txt"})
	if ok {
		t.Fatalf("expected no match for an unrelated extension")
	}
}
