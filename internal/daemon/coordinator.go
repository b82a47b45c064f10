// Package daemon is the long-lived scan coordinator of spec.md §4.6: it
// wraps a scan engine and exposes it as a service with a state machine, a
// single write-lock holder, mount-table-driven rescans, and throttled
// progress/property-change events. Grounded on the teacher's
// internal/daemon/daemon.go (signal-driven Start/Stop lifecycle) and
// internal/scanner/periodic.go (the ticker + dedicated-goroutine pattern
// this generalizes into the coordinator's own main-loop/scanner-thread
// split).
package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/lms-scan/lms-scan/internal/config"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/scanner"
	"github.com/lms-scan/lms-scan/internal/watcher"
)

// Status is the coordinator's externally observable property set,
// spec.md §6's bus properties.
type Status struct {
	DataBasePath string
	IsScanning   bool
	WriteLocked  bool
	UpdateID     uint64
	Categories   map[string]config.CategoryConfig
}

// ProgressEvent is one throttled progress signal, spec.md §6's
// ScanProgress signal.
type ProgressEvent struct {
	Category  string
	Path      string
	UpToDate  uint64
	Processed uint64
	Deleted   uint64
	Skipped   uint64
	Errors    uint64
}

// PropertyChangeEvent groups every property that changed during one main
// loop turn into a single notification, per spec.md §4.6's coalescing
// rule.
type PropertyChangeEvent struct {
	Status Status
}

// Event is delivered to subscribers (internal/api's SSE endpoint).
type Event struct {
	Progress       *ProgressEvent
	PropertyChange *PropertyChangeEvent
}

const (
	progressUpdateCount   = 50
	progressUpdateTimeout = time.Second
	mountPollInterval     = time.Second
)

// Coordinator is the daemon's single-threaded cooperative event loop:
// every field below is touched only from the goroutine running Run, the
// Go analogue of spec.md §5's "main thread owns pending_scan and the
// write-lock fields; the scanner thread never touches them".
type Coordinator struct {
	store      *database.Store
	newScanner func() *scanner.Scanner
	driver     *scanner.Driver
	cfg        *config.Config
	log        *logging.Logger

	scanning bool
	stopping bool
	// stopRequested is read from the scanner goroutine's StopRequested
	// closure (started in startScan) while the main loop writes it in
	// handleStop/startScan — every other field here is main-loop-only,
	// but this one crosses goroutines, hence the atomic.
	stopRequested   atomic.Bool
	writeLockHolder string

	pending ScanRequest

	subs map[chan Event]struct{}

	requests chan request
	mounts   chan watcher.MountEvent
	scanDone chan scanOutcome
	progress chan ProgressEvent
}

type scanOutcome struct {
	result *scanner.ScanResult
	err    error
}

// request is the sum type of every call the coordinator's public API
// methods send to the main loop.
type request interface{}

type statusReq struct{ reply chan Status }
type scanReq struct {
	spec  ScanRequest
	reply chan error
}
type stopReq struct{ reply chan error }
type lockReq struct {
	holder string
	reply  chan error
}
type unlockReq struct {
	holder string
	reply  chan error
}

// New builds a Coordinator. newScanner is called once per scan to build a
// fresh Scanner bound to a registry/charset configuration — a func rather
// than a shared value because scans may run with different parser sets
// per category. driver may be nil, in which case every scan runs in
// single-process mode (spec.md §4.5); a non-nil driver is reused across
// every scan this coordinator runs, since spawning a worker subprocess per
// scan would defeat the point of keeping one supervised long enough to
// amortize its startup cost.
func New(store *database.Store, cfg *config.Config, newScanner func() *scanner.Scanner, driver *scanner.Driver, log *logging.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		newScanner: newScanner,
		driver:     driver,
		cfg:        cfg,
		log:        log,
		subs:       make(map[chan Event]struct{}),
		requests:   make(chan request),
		mounts:     make(chan watcher.MountEvent, 8),
		scanDone:   make(chan scanOutcome, 1),
		progress:   make(chan ProgressEvent, 64),
	}
}

// Run is the coordinator's main loop. It blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.cfg.StartupScan {
		go c.beginScanIfIdle()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-c.requests:
			c.handleRequest(req)

		case ev := <-c.mounts:
			c.handleMountEvent(ev)

		case p := <-c.progress:
			c.emit(Event{Progress: &p})

		case out := <-c.scanDone:
			c.handleScanDone(out)
		}
	}
}

func (c *Coordinator) handleRequest(req request) {
	switch r := req.(type) {
	case statusReq:
		r.reply <- c.status()

	case scanReq:
		r.reply <- c.handleScan(r.spec)

	case stopReq:
		r.reply <- c.handleStop()

	case lockReq:
		r.reply <- c.handleLock(r.holder)

	case unlockReq:
		r.reply <- c.handleUnlock(r.holder)

	case subscribeReq:
		c.subs[r.ch] = struct{}{}
		close(r.reply)

	case unsubscribeReq:
		delete(c.subs, r.ch)
		close(r.reply)
	}
}

// handleScan implements the state-machine rule (explicit client Scan
// calls reject with AlreadyScanning rather than queue) alongside the
// pending-queue rule (mount events, generated internally, accumulate
// instead; the startup scan comes through here too), resolving the spec's two
// overlapping §4.6 descriptions: see DESIGN.md's Open Question entry.
func (c *Coordinator) handleScan(spec ScanRequest) error {
	if c.writeLockHolder != "" && c.writeLockHolder != engineLockHolder {
		return ErrWriteLocked
	}
	if c.scanning {
		return ErrAlreadyScanning
	}

	canon, warnings := canonicalizeRequest(c.cfg.Categories, spec)
	for _, w := range warnings {
		c.log.Warn("daemon", w)
	}
	c.startScan(canon)
	return nil
}

func (c *Coordinator) handleStop() error {
	if !c.scanning {
		return ErrNotScanning
	}
	if c.stopping {
		return ErrAlreadyStopping
	}
	c.stopping = true
	c.stopRequested.Store(true)
	return nil
}

const engineLockHolder = "__engine__"

func (c *Coordinator) handleLock(holder string) error {
	switch c.writeLockHolder {
	case "":
		c.writeLockHolder = holder
		c.notifyPropertyChange()
		return nil
	case holder:
		return nil
	case engineLockHolder:
		return ErrIsScanning
	default:
		return ErrAlreadyLocked
	}
}

func (c *Coordinator) handleUnlock(holder string) error {
	if c.writeLockHolder == "" || c.writeLockHolder != holder {
		return ErrNotLocked
	}
	c.writeLockHolder = ""
	c.notifyPropertyChange()
	return nil
}

// handleMountEvent enqueues scans for categories with an added or removed
// mountpoint at or under one of their directories. Per spec.md §9's dual-insertion
// note, an added mountpoint is both enqueued for scanning and (implicitly,
// since watcher.Watcher already tracks it) kept in the current mount set —
// there is nothing further to do here for the "keep" half; this handles
// only the "also scan" half.
func (c *Coordinator) handleMountEvent(ev watcher.MountEvent) {
	affected := affectedCategories(c.cfg.Categories, ev)
	if len(affected) == 0 {
		return
	}
	spec := make(ScanRequest, len(affected))
	for _, name := range affected {
		spec[name] = nil // empty path list: use the category's configured defaults
	}
	canon, warnings := canonicalizeRequest(c.cfg.Categories, spec)
	for _, w := range warnings {
		c.log.Warn("daemon", w)
	}
	if c.scanning {
		c.pending = mergeRequests(c.pending, canon)
		return
	}
	c.startScan(canon)
}

func affectedCategories(categories map[string]config.CategoryConfig, ev watcher.MountEvent) []string {
	changed := append(append([]string(nil), ev.Added...), ev.Removed...)
	var names []string
	for name, cat := range categories {
		for _, mp := range changed {
			if underAnyRoot(mp, cat.Dirs) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

func (c *Coordinator) startScan(spec ScanRequest) {
	c.scanning = true
	c.stopping = false
	c.stopRequested.Store(false)
	if c.writeLockHolder == "" {
		c.writeLockHolder = engineLockHolder
	}
	c.notifyPropertyChange()

	roots := make([]string, 0)
	for _, paths := range spec {
		roots = append(roots, paths...)
	}
	sort.Strings(roots)

	sc := c.newScanner()
	counters := newProgressCounters()
	lastEmit := time.Now()

	go func() {
		result, err := sc.Scan(context.Background(), scanner.ScanOptions{
			Roots:          roots,
			Driver:         c.driver,
			CommitInterval: c.cfg.CommitInterval,
			StopRequested: func() bool {
				return c.stopRequested.Load()
			},
			OnProgress: func(p scanner.ScanProgress) {
				counters.processed = uint64(p.FilesScanned)
				if counters.processed-counters.lastReported < progressUpdateCount ||
					time.Since(lastEmit) < progressUpdateTimeout {
					return
				}
				counters.lastReported = counters.processed
				lastEmit = time.Now()
				c.progress <- ProgressEvent{
					Path:      p.CurrentPath,
					Processed: counters.processed,
				}
			},
		})
		c.scanDone <- scanOutcome{result: result, err: err}
	}()
}

type progressCounters struct {
	processed    uint64
	lastReported uint64
}

func newProgressCounters() *progressCounters { return &progressCounters{} }

// handleScanDone is the "idle callback" spec.md §5 describes: only after
// this runs does pending_scan get consulted again, because the scanner
// goroutine signals completion only through c.scanDone, never by touching
// c.pending/c.scanning itself.
func (c *Coordinator) handleScanDone(out scanOutcome) {
	c.scanning = false
	c.stopping = false
	if c.writeLockHolder == engineLockHolder {
		c.writeLockHolder = ""
	}

	if out.err != nil {
		c.log.Error("daemon", "scan failed", out.err)
	} else if out.result != nil {
		c.progress <- ProgressEvent{
			Processed: uint64(out.result.FilesScanned),
			Deleted:   uint64(out.result.FilesRemoved),
			Skipped:   uint64(out.result.FilesSkipped),
			Errors:    uint64(len(out.result.Errors)),
		}
	}

	if err := c.postScanMaintenance(); err != nil {
		c.log.Error("daemon", "post-scan maintenance failed", err)
	}

	c.notifyPropertyChange()

	if len(c.pending) > 0 {
		next := c.pending
		c.pending = nil
		c.startScan(next)
	}
}

// postScanMaintenance implements spec.md §4.6's post-scan housekeeping:
// tombstone purge when delete_older_than >= 0, VACUUM when configured.
func (c *Coordinator) postScanMaintenance() error {
	if c.cfg.DeleteOlderThan >= 0 {
		cutoff := time.Now().AddDate(0, 0, -c.cfg.DeleteOlderThan).Unix()
		if _, err := c.store.PurgeTombstones(cutoff); err != nil {
			return fmt.Errorf("purge tombstones: %w", err)
		}
	}
	if c.cfg.Vacuum {
		if err := c.store.Vacuum(); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}

func (c *Coordinator) status() Status {
	updateID, _ := c.store.UpdateID()
	return Status{
		DataBasePath: c.store.Path(),
		IsScanning:   c.scanning,
		WriteLocked:  c.writeLockHolder != "",
		UpdateID:     uint64(updateID),
		Categories:   c.cfg.Categories,
	}
}

func (c *Coordinator) notifyPropertyChange() {
	c.emit(Event{PropertyChange: &PropertyChangeEvent{Status: c.status()}})
}

func (c *Coordinator) emit(ev Event) {
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (c *Coordinator) beginScanIfIdle() {
	reply := make(chan error, 1)
	c.requests <- scanReq{spec: ScanRequest{}, reply: reply}
	<-reply
}

// --- Public API, called from any goroutine (internal/api handlers) ---

func (c *Coordinator) Status() Status {
	reply := make(chan Status, 1)
	c.requests <- statusReq{reply: reply}
	return <-reply
}

func (c *Coordinator) Scan(spec ScanRequest) error {
	reply := make(chan error, 1)
	c.requests <- scanReq{spec: spec, reply: reply}
	return <-reply
}

func (c *Coordinator) Stop() error {
	reply := make(chan error, 1)
	c.requests <- stopReq{reply: reply}
	return <-reply
}

func (c *Coordinator) RequestWriteLock(holder string) error {
	reply := make(chan error, 1)
	c.requests <- lockReq{holder: holder, reply: reply}
	return <-reply
}

func (c *Coordinator) ReleaseWriteLock(holder string) error {
	reply := make(chan error, 1)
	c.requests <- unlockReq{holder: holder, reply: reply}
	return <-reply
}

// Stats reports row counts per category, for internal/service's
// readiness check and the /stats endpoint. It goes straight to the
// store rather than through the request channel: *sql.DB is already
// safe for concurrent use, and counting rows touches none of the
// main-loop-owned fields above.
func (c *Coordinator) Stats() (*database.Stats, error) {
	return c.store.Stats()
}

// HandleMountEvent implements watcher.Handler.
func (c *Coordinator) HandleMountEvent(ev watcher.MountEvent) {
	select {
	case c.mounts <- ev:
	default:
	}
}

// Subscribe registers a channel that receives every Event until cancel is
// called. Buffered and best-effort: a slow subscriber drops events rather
// than blocking the main loop.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	reply := make(chan struct{})
	c.requests <- subscribeReq{ch: ch, reply: reply}
	<-reply
	return ch, func() {
		reply := make(chan struct{})
		c.requests <- unsubscribeReq{ch: ch, reply: reply}
		<-reply
	}
}

type subscribeReq struct {
	ch    chan Event
	reply chan struct{}
}
type unsubscribeReq struct {
	ch    chan Event
	reply chan struct{}
}
