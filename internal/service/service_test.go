package service

import (
	"errors"
	"testing"

	"github.com/lms-scan/lms-scan/internal/database"
)

type fakeCoordinator struct {
	stats *database.Stats
	err   error
}

func (f *fakeCoordinator) Stats() (*database.Stats, error) { return f.stats, f.err }

func TestReady_TrueWhenStoreReachable(t *testing.T) {
	svc := New(&fakeCoordinator{stats: &database.Stats{TotalFiles: 3}})

	ready, err := svc.Ready()
	if !ready || err != nil {
		t.Fatalf("expected ready, got ready=%v err=%v", ready, err)
	}
}

func TestReady_FalseWhenStoreErrors(t *testing.T) {
	svc := New(&fakeCoordinator{err: errors.New("database is locked")})

	ready, err := svc.Ready()
	if ready || err == nil {
		t.Fatalf("expected not-ready with error, got ready=%v err=%v", ready, err)
	}
}

func TestHealthy_FalseWithNilCoordinator(t *testing.T) {
	svc := New(nil)
	if svc.Healthy() {
		t.Fatal("expected unhealthy with no coordinator")
	}
}

func TestStats_PassesThrough(t *testing.T) {
	want := &database.Stats{TotalFiles: 7, Audios: 4}
	svc := New(&fakeCoordinator{stats: want})

	got, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.TotalFiles != want.TotalFiles || got.Audios != want.Audios {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
