// Package parser defines the plugin contract every media format parser
// implements (spec.md §4.3): six lifecycle operations plus the identity
// metadata the registry uses to order and dispatch them.
package parser

import (
	"time"

	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/database"
)

// FileInfo describes the file a plugin is asked to inspect. Base is the
// byte offset within Path where the filename (not the directory) starts,
// mirroring the original parser contract's finfo->base so a plugin can
// derive a title from the filename without restating path-splitting logic
// itself.
type FileInfo struct {
	Path  string
	Base  int
	Size  int64
	Mtime time.Time
}

// Context carries the per-scan-session resources a plugin's Parse needs:
// the charset converter configured from the daemon's charset list, and the
// database handle Parse writes its per-category row through.
type Context struct {
	Charset *charset.Converter
	Store   *database.Store
}

// MatchToken is whatever private state a plugin's Match wants to hand back
// to its own Parse call (e.g. the matched extension's table index, or a
// handful of fingerprint bytes already read off disk). The registry treats
// it as opaque.
type MatchToken any

// Plugin is the six-operation contract (spec.md §4.3): Match decides
// whether this plugin claims a file, Setup/Start/Finish/Close bracket a
// parser instance's lifetime across a scan session, and Parse extracts
// metadata and writes it to the database for one claimed file.
type Plugin interface {
	// Name identifies the plugin in logs and in the files table's parser
	// column.
	Name() string

	// Categories lists the media categories (e.g. "audio", "image") this
	// plugin can produce rows for.
	Categories() []string

	// Order controls claim priority: plugins are tried lowest-Order-first,
	// and the first to return a non-nil match wins. A fallback plugin like
	// generic sets Order to math.MaxInt32 so format-specific plugins always
	// get first refusal.
	Order() int

	// Match inspects path/extension (and, if needed, a content sniff) and
	// reports whether this plugin claims the file, returning a token its
	// own Parse will receive back.
	Match(info FileInfo) (MatchToken, bool)

	// Setup is called once when the plugin is loaded into a worker process,
	// before any Start/Parse/Finish cycle.
	Setup(ctx *Context) error

	// Start begins one scan session (a single driver-initiated scan run).
	Start() error

	// Parse extracts metadata from the claimed file and persists it via
	// ctx.Store. token is whatever Match returned for this file.
	Parse(ctx *Context, info FileInfo, token MatchToken) error

	// Finish ends the scan session begun by Start.
	Finish() error

	// Close releases any resources acquired in Setup, when the worker
	// process is shutting down.
	Close() error
}
