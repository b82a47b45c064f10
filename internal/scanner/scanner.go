// Package scanner walks directory roots, decides each file's scan status,
// and drives the parser registry against new/changed files (spec.md §4.5).
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/parser"
)

// Status classifies a file against the database's prior record of it, the
// seven-way decision of spec.md §4.5.
type Status int

const (
	StatusNew Status = iota
	StatusUpToDate
	StatusOutdated
	StatusRevived
	StatusDeleted
	StatusSkippedExtension
	StatusSkippedUnclaimed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusUpToDate:
		return "up-to-date"
	case StatusOutdated:
		return "outdated"
	case StatusRevived:
		return "revived"
	case StatusDeleted:
		return "deleted"
	case StatusSkippedExtension:
		return "skipped-extension"
	case StatusSkippedUnclaimed:
		return "skipped-unclaimed"
	default:
		return "unknown"
	}
}

// ScanResult contains statistics from a scan run over one or more roots.
type ScanResult struct {
	FilesScanned int
	FilesAdded   int
	FilesUpdated int
	FilesRevived int
	FilesRemoved int
	FilesSkipped int
	Duration     time.Duration
	Errors       []error
}

// ScanProgress reports progress during a scan, throttled per spec.md §9
// (emitted when count has advanced by at least progressCountThreshold or
// progressTimeThreshold has elapsed since the last emission).
type ScanProgress struct {
	FilesScanned int
	CurrentPath  string
	RootsDone    int
	RootsTotal   int
}

// ProgressCallback is invoked periodically during a scan.
type ProgressCallback func(ScanProgress)

const (
	progressCountThreshold = 50
	progressTimeThreshold  = time.Second
)

// ScanOptions configures one scan run.
type ScanOptions struct {
	Roots      []string
	OnProgress ProgressCallback
	// StopRequested is polled between files; when it returns true the scan
	// winds down at the next safe point instead of running to completion
	// (spec.md §4.5's cooperative stop_processing).
	StopRequested func() bool
	// Driver selects dual-process mode (spec.md §4.5's default): when
	// non-nil, each claimed file's Parse is dispatched to the supervised
	// worker subprocess instead of running in this process. Nil selects
	// single-process mode — identical decision logic, no crash isolation.
	Driver *Driver
	// CommitInterval is spec.md §4.6's commit_interval: in single-process
	// mode (Driver == nil) a WAL checkpoint runs every CommitInterval
	// successful parses, the same cadence the worker subprocess applies to
	// itself in dual-process mode. <= 0 means every single parse.
	CommitInterval int
}

// Scanner ties a parser registry to a database store and runs the walk
// loop described in spec.md §4.5.
type Scanner struct {
	store    *database.Store
	registry *parser.Registry
	charset  parser.Context
	log      *logging.Logger
	batch    *database.Batcher
}

func New(store *database.Store, registry *parser.Registry, ctx parser.Context, log *logging.Logger) *Scanner {
	return &Scanner{store: store, registry: registry, charset: ctx, log: log}
}

// Scan walks every root in opts.Roots, comparing what it finds on disk
// against the database's prior record of that prefix, and reports what it
// did.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	start := time.Now()
	result := &ScanResult{}
	s.batch = database.NewBatcher(opts.CommitInterval)

	lastReportCount := 0
	lastReportTime := start
	report := func(p ScanProgress) {
		if opts.OnProgress == nil {
			return
		}
		if p.FilesScanned-lastReportCount >= progressCountThreshold ||
			time.Since(lastReportTime) >= progressTimeThreshold {
			opts.OnProgress(p)
			lastReportCount = p.FilesScanned
			lastReportTime = time.Now()
		}
	}

	for i, root := range opts.Roots {
		if opts.StopRequested != nil && opts.StopRequested() {
			break
		}
		if err := s.scanRoot(ctx, root, opts, result, &report); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("scan root %s: %w", root, err))
		}
		report(ScanProgress{FilesScanned: result.FilesScanned, RootsDone: i + 1, RootsTotal: len(opts.Roots)})
	}

	if opts.Driver == nil {
		if err := s.store.Checkpoint(); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("final checkpoint: %w", err))
		}
	}

	if _, err := s.store.BumpUpdateID(); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("bump update id: %w", err))
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string, opts ScanOptions, result *ScanResult, report *func(ScanProgress)) error {
	seen := make(map[string]bool)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}
		if opts.StopRequested != nil && opts.StopRequested() {
			return filepath.SkipAll
		}
		if info.IsDir() {
			return nil
		}

		seen[path] = true
		status := s.processFile(path, info, opts.Driver)
		result.FilesScanned++
		switch status {
		case StatusNew:
			result.FilesAdded++
		case StatusOutdated:
			result.FilesUpdated++
		case StatusRevived:
			result.FilesRevived++
		case StatusSkippedExtension, StatusSkippedUnclaimed:
			result.FilesSkipped++
		}

		(*report)(ScanProgress{FilesScanned: result.FilesScanned, CurrentPath: path})
		return nil
	})
	if err != nil {
		return err
	}

	removed, err := s.pruneDeleted(root, seen)
	if err != nil {
		return err
	}
	result.FilesRemoved += removed
	return nil
}

// processFile resolves a single file's status against the database and,
// for new/outdated/revived files, dispatches it to the matching plugin.
func (s *Scanner) processFile(path string, info os.FileInfo, driver *Driver) Status {
	base := strings.LastIndexByte(path, os.PathSeparator) + 1
	finfo := parser.FileInfo{Path: path, Base: base, Size: info.Size(), Mtime: info.ModTime()}

	plugin, token, claimed := s.registry.Match(finfo)
	if !claimed {
		return StatusSkippedUnclaimed
	}

	existing, err := s.store.GetFileByPath(path)
	mtime := info.ModTime().Unix()
	size := info.Size()
	category := firstCategory(plugin)
	if c, ok := token.(string); ok && c != "" {
		category = c
	}

	switch {
	case err != nil: // not found: brand new file
		rec := &database.FileRecord{Path: path, Mtime: mtime, Size: size, Category: category, Parser: plugin.Name()}
		id, insErr := s.store.InsertFile(rec, database.NowUnix())
		if insErr != nil {
			s.log.Error("scanner", "insert file failed", insErr, logging.F("path", path))
			return StatusSkippedUnclaimed
		}
		s.parseWith(plugin, finfo, token, id, driver)
		return StatusNew

	case existing.Dtime != 0: // tombstoned, reappeared: revive
		rec := &database.FileRecord{Mtime: mtime, Size: size, Category: category, Parser: plugin.Name()}
		if revErr := s.store.Revive(existing.ID, rec, database.NowUnix()); revErr != nil {
			s.log.Error("scanner", "revive file failed", revErr, logging.F("path", path))
			return StatusSkippedUnclaimed
		}
		// Same mtime/size as before tombstoning: the bytes are unchanged, so
		// the prior parse's results are still correct and re-parsing is
		// skipped entirely (spec.md §4.5/§8 scenario 4).
		if existing.Mtime != mtime || existing.Size != size {
			s.parseWith(plugin, finfo, token, existing.ID, driver)
		}
		return StatusRevived

	case existing.Mtime != mtime || existing.Size != size: // changed: re-parse
		rec := &database.FileRecord{Mtime: mtime, Size: size, Category: category, Parser: plugin.Name()}
		if updErr := s.store.UpdateFile(existing.ID, rec); updErr != nil {
			s.log.Error("scanner", "update file failed", updErr, logging.F("path", path))
			return StatusSkippedUnclaimed
		}
		s.parseWith(plugin, finfo, token, existing.ID, driver)
		return StatusOutdated

	default:
		return StatusUpToDate
	}
}

// parseWith runs plugin's Parse for one file, either in-process
// (single-process mode, driver == nil) or by dispatching a Job to the
// supervised worker subprocess (dual-process mode). A dual-process
// ParseError deletes the file's row so the next scan retries it, per
// spec.md §7; a comm/kill error leaves the row outdated and is only
// logged, since the driver has already recovered by respawning the worker.
func (s *Scanner) parseWith(plugin parser.Plugin, finfo parser.FileInfo, token parser.MatchToken, fileID int64, driver *Driver) {
	if driver == nil {
		ctx := &s.charset
		err := plugin.Parse(ctx, finfo, token)
		if err != nil {
			s.log.Warn("scanner", "parser failed", logging.F("plugin", plugin.Name()), logging.F("path", finfo.Path), logging.F("error", err.Error()))
			return
		}
		if s.batch.Tick() {
			if cpErr := s.store.Checkpoint(); cpErr != nil {
				s.log.Error("scanner", "checkpoint failed", cpErr)
			}
		}
		return
	}

	job := Job{FileID: fileID, Path: finfo.Path, Base: finfo.Base, Parser: plugin.Name()}
	res, err := driver.Dispatch(job)
	if err != nil {
		s.log.Warn("scanner", "worker dispatch failed, file left outdated", logging.F("plugin", plugin.Name()), logging.F("path", finfo.Path), logging.F("error", err.Error()))
		return
	}
	if res.Error != "" {
		s.log.Warn("scanner", "parse failed, file row deleted for retry", logging.F("plugin", plugin.Name()), logging.F("path", finfo.Path), logging.F("error", res.Error))
		if delErr := s.store.DeleteFile(fileID); delErr != nil {
			s.log.Error("scanner", "delete file after parse error failed", delErr, logging.F("path", finfo.Path))
		}
	}
}

func firstCategory(p parser.Plugin) string {
	cats := p.Categories()
	if len(cats) == 0 {
		return ""
	}
	return cats[0]
}

// pruneDeleted tombstones every database row under root that the walk
// didn't visit, implementing spec.md §4.5's deleted-file detection: a scan
// is the only way the daemon learns a file vanished, since there's no
// remote-filesystem change notification (an explicit Non-goal).
func (s *Scanner) pruneDeleted(root string, seen map[string]bool) (int, error) {
	rows, err := s.store.SelectFilesLike(root)
	if err != nil {
		return 0, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	removed := 0
	now := database.NowUnix()
	for _, row := range rows {
		if row.Dtime != 0 {
			continue
		}
		if seen[row.Path] {
			continue
		}
		if err := s.store.SetDtime(row.ID, now); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
