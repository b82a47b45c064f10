package database

import "fmt"

// PlaylistRecord mirrors one row of playlists (m3u/pls parsers report only
// an entry count, per spec.md's Non-goal of not resolving playlist entries
// against the files table at scan time).
type PlaylistRecord struct {
	ID       int64
	Title    string
	NEntries int
}

func (s *Store) UpsertPlaylist(id int64, p *PlaylistRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO playlists(id, title, n_entries) VALUES(?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, n_entries=excluded.n_entries`,
		id, p.Title, p.NEntries,
	)
	if err != nil {
		return fmt.Errorf("upsert playlist id=%d: %w", id, err)
	}
	return nil
}
