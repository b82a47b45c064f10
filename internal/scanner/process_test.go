package scanner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lms-scan/lms-scan/internal/database"
)

// TestMain re-execs this test binary as a worker process when invoked with
// WorkerFlag as its first argument, the same "helper process" pattern
// os/exec's own tests use to exercise real subprocess behavior without a
// separate build step.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == WorkerFlag {
		dbPath := os.Args[2]
		parserNames := splitCSV(os.Args[3])
		charsetNames := splitCSV(os.Args[4])
		commitInterval, err := strconv.Atoi(os.Args[5])
		if err != nil {
			commitInterval = 100
		}
		if err := RunWorker(dbPath, parserNames, charsetNames, commitInterval); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func TestDriver_DispatchRunsWorkerSubprocess(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "db.sqlite3")

	store, err := database.OpenPath(dbPath, false)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	filePath := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(filePath, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	id, err := store.InsertFile(&database.FileRecord{
		Path: filePath, Mtime: 1, Size: 1, Category: "video", Parser: "generic",
	}, 1)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	store.Close()

	d := NewDriver(dbPath, []string{"generic"}, nil, 5*time.Second, 100)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	res, err := d.Dispatch(Job{FileID: id, Path: filePath, Base: len(dir) + 1, Parser: "generic"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.FileID != id {
		t.Errorf("got FileID=%d, want %d", res.FileID, id)
	}
	if res.Error != "" {
		t.Errorf("expected no parse error from generic, got %q", res.Error)
	}
}
