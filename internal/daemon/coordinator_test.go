package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/lms-scan/lms-scan/internal/charset"
	"github.com/lms-scan/lms-scan/internal/config"
	"github.com/lms-scan/lms-scan/internal/database"
	"github.com/lms-scan/lms-scan/internal/logging"
	"github.com/lms-scan/lms-scan/internal/parser"
	"github.com/lms-scan/lms-scan/internal/scanner"
)

func newTestCoordinator(t *testing.T, categories map[string]config.CategoryConfig) (*Coordinator, context.CancelFunc) {
	t.Helper()
	store, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.Categories = categories

	newScanner := func() *scanner.Scanner {
		registry := parser.NewRegistry()
		pctx := parser.Context{Store: store, Charset: charset.New(nil, true, true)}
		return scanner.New(store, registry, pctx, logging.Nop())
	}

	c := New(store, cfg, newScanner, nil, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return c, cancel
}

func TestCoordinator_StopWhileIdleYieldsNotScanning(t *testing.T) {
	c, cancel := newTestCoordinator(t, nil)
	defer cancel()

	if err := c.Stop(); err != ErrNotScanning {
		t.Fatalf("expected ErrNotScanning, got %v", err)
	}
}

func TestCoordinator_ScanThenScanYieldsAlreadyScanning(t *testing.T) {
	dir := t.TempDir()
	c, cancel := newTestCoordinator(t, map[string]config.CategoryConfig{
		"audio": {Dirs: []string{dir}},
	})
	defer cancel()

	if err := c.Scan(ScanRequest{"audio": {dir}}); err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if err := c.Scan(ScanRequest{"audio": {dir}}); err != ErrAlreadyScanning {
		t.Fatalf("expected ErrAlreadyScanning, got %v", err)
	}
}

func TestCoordinator_WriteLockBlocksScanForOtherClients(t *testing.T) {
	dir := t.TempDir()
	c, cancel := newTestCoordinator(t, map[string]config.CategoryConfig{
		"audio": {Dirs: []string{dir}},
	})
	defer cancel()

	if err := c.RequestWriteLock("client-a"); err != nil {
		t.Fatalf("RequestWriteLock: %v", err)
	}
	if err := c.Scan(ScanRequest{"audio": {dir}}); err != ErrWriteLocked {
		t.Fatalf("expected ErrWriteLocked, got %v", err)
	}

	if err := c.ReleaseWriteLock("client-a"); err != nil {
		t.Fatalf("ReleaseWriteLock: %v", err)
	}
	if err := c.Scan(ScanRequest{"audio": {dir}}); err != nil {
		t.Fatalf("expected Scan to succeed after lock release, got %v", err)
	}
}

func TestCoordinator_ReleaseWriteLockWrongHolderYieldsNotLocked(t *testing.T) {
	c, cancel := newTestCoordinator(t, nil)
	defer cancel()

	if err := c.RequestWriteLock("client-a"); err != nil {
		t.Fatalf("RequestWriteLock: %v", err)
	}
	if err := c.ReleaseWriteLock("client-b"); err != ErrNotLocked {
		t.Fatalf("expected ErrNotLocked, got %v", err)
	}
}

func TestCoordinator_RequestWriteLockIdempotentForSameHolder(t *testing.T) {
	c, cancel := newTestCoordinator(t, nil)
	defer cancel()

	if err := c.RequestWriteLock("client-a"); err != nil {
		t.Fatalf("first RequestWriteLock: %v", err)
	}
	if err := c.RequestWriteLock("client-a"); err != nil {
		t.Fatalf("second RequestWriteLock from same holder should be idempotent: %v", err)
	}
	if err := c.RequestWriteLock("client-b"); err != ErrAlreadyLocked {
		t.Fatalf("expected ErrAlreadyLocked, got %v", err)
	}
}

func TestCoordinator_ScanEventuallyReturnsToIdle(t *testing.T) {
	dir := t.TempDir()
	c, cancel := newTestCoordinator(t, map[string]config.CategoryConfig{
		"audio": {Dirs: []string{dir}},
	})
	defer cancel()

	if err := c.Scan(ScanRequest{"audio": {dir}}); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !c.Status().IsScanning {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("coordinator never returned to idle")
}
