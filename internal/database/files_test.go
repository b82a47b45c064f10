package database

import (
	"database/sql"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetFile_RoundTrips(t *testing.T) {
	s := newTestStore(t)

	f := &FileRecord{Path: "/media/song.mp3", Mtime: 1000, Size: 2048, Category: "audio", Parser: "id3"}
	id, err := s.InsertFile(f, 5000)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}

	got, err := s.GetFileByPath("/media/song.mp3")
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if got.ID != id || got.Mtime != 1000 || got.Size != 2048 || got.Dtime != 0 || got.Itime != 5000 {
		t.Errorf("got %+v", got)
	}
}

func TestGetFileByPath_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetFileByPath("/nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSetDtime_ThenRevive(t *testing.T) {
	s := newTestStore(t)
	f := &FileRecord{Path: "/media/clip.mp4", Mtime: 10, Size: 1, Category: "video", Parser: "mp4"}
	id, err := s.InsertFile(f, 100)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}

	if err := s.SetDtime(id, 200); err != nil {
		t.Fatalf("SetDtime: %v", err)
	}
	got, _ := s.GetFileByPath("/media/clip.mp4")
	if got.Dtime != 200 {
		t.Fatalf("expected tombstoned, got dtime=%d", got.Dtime)
	}

	if err := s.Revive(id, &FileRecord{Mtime: 999, Size: 5, Category: "video", Parser: "mp4"}, 300); err != nil {
		t.Fatalf("Revive: %v", err)
	}
	got, _ = s.GetFileByPath("/media/clip.mp4")
	if got.Dtime != 0 || got.Mtime != 999 || got.Itime != 300 {
		t.Errorf("expected revived row with dtime=0 mtime=999 itime=300, got %+v", got)
	}
}

func TestSelectFilesLike_EscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	paths := []string{"/media/a_b/x.mp3", "/media/a_bX/y.mp3", "/media/other/z.mp3"}
	for _, p := range paths {
		if _, err := s.InsertFile(&FileRecord{Path: p, Mtime: 1, Category: "audio"}, 1); err != nil {
			t.Fatalf("InsertFile(%s): %v", p, err)
		}
	}

	got, err := s.SelectFilesLike("/media/a_b/")
	if err != nil {
		t.Fatalf("SelectFilesLike: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/media/a_b/x.mp3" {
		t.Errorf("expected underscore to be treated literally, got %v", got)
	}
}

func TestDeleteFile_CascadesAudioRow(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertFile(&FileRecord{Path: "/media/s.mp3", Mtime: 1, Category: "audio"}, 1)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := s.ResolveIDs(&AudioRecord{}); err != nil {
		t.Fatalf("ResolveIDs: %v", err)
	}
	if err := s.UpsertAudio(id, &AudioRecord{Title: "Song"}); err != nil {
		t.Fatalf("UpsertAudio: %v", err)
	}

	if err := s.DeleteFile(id); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audios WHERE id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade trigger to remove audio row, got count=%d", count)
	}
}

func TestGetOrCreateArtist_DedupsCaseAndSpace(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.GetOrCreateArtist("The Beatles")
	if err != nil {
		t.Fatalf("GetOrCreateArtist: %v", err)
	}
	id2, err := s.GetOrCreateArtist("the   beatles")
	if err != nil {
		t.Fatalf("GetOrCreateArtist: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected dedup, got distinct ids %d %d", id1, id2)
	}
}

func TestPurgeTombstones_RemovesOnlyAged(t *testing.T) {
	s := newTestStore(t)
	id, err := s.InsertFile(&FileRecord{Path: "/media/old.mp3", Mtime: 1, Category: "audio"}, 1)
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}
	if err := s.SetDtime(id, 100); err != nil {
		t.Fatalf("SetDtime: %v", err)
	}

	n, err := s.PurgeTombstones(50)
	if err != nil {
		t.Fatalf("PurgeTombstones: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cutoff before dtime to purge nothing, got %d", n)
	}

	n, err = s.PurgeTombstones(150)
	if err != nil {
		t.Fatalf("PurgeTombstones: %v", err)
	}
	if n != 1 {
		t.Errorf("expected cutoff after dtime to purge the row, got %d", n)
	}
}
