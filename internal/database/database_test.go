package database

import "testing"

func TestOpenInMemory_MigratesToLatest(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer s.Close()

	v, err := schemaVersion(s.db)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != latestVersion() {
		t.Errorf("got schema version %d, want %d", v, latestVersion())
	}
}

func TestOpenInMemory_Reopen_NoOp(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer s.Close()

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate should be a no-op, got: %v", err)
	}
}

func TestStats_EmptyDatabase(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer s.Close()

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalFiles != 0 || st.Audios != 0 {
		t.Errorf("expected all-zero stats on fresh database, got %+v", st)
	}
}

func TestBumpUpdateID_Increments(t *testing.T) {
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer s.Close()

	v1, err := s.BumpUpdateID()
	if err != nil {
		t.Fatalf("BumpUpdateID: %v", err)
	}
	v2, err := s.BumpUpdateID()
	if err != nil {
		t.Fatalf("BumpUpdateID: %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("expected monotonic increment, got %d then %d", v1, v2)
	}
}
