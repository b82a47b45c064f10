package database

import "fmt"

// PurgeTombstones permanently deletes every file row whose dtime is set and
// older than cutoff (unix seconds), returning the count removed. Called by
// the daemon after a scan completes, per spec.md §4.6's delete_older_than
// setting.
func (s *Store) PurgeTombstones(cutoff int64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM files WHERE dtime <> 0 AND dtime < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge tombstones: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum reclaims space freed by PurgeTombstones. It holds an exclusive
// lock on the database for its duration, so the daemon only calls it after
// a scan when no worker process holds the write lock.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Stats reports row counts per category, used by the /v1/stats endpoint and
// the readiness check behind /healthz.
type Stats struct {
	TotalFiles int64
	Tombstoned int64
	Audios     int64
	Images     int64
	Videos     int64
	Playlists  int64
}

func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		q   string
		dst *int64
	}{
		{`SELECT COUNT(*) FROM files`, &st.TotalFiles},
		{`SELECT COUNT(*) FROM files WHERE dtime <> 0`, &st.Tombstoned},
		{`SELECT COUNT(*) FROM audios`, &st.Audios},
		{`SELECT COUNT(*) FROM images`, &st.Images},
		{`SELECT COUNT(*) FROM videos`, &st.Videos},
		{`SELECT COUNT(*) FROM playlists`, &st.Playlists},
	}
	for _, qq := range queries {
		if err := s.db.QueryRow(qq.q).Scan(qq.dst); err != nil {
			return nil, fmt.Errorf("stats query %q: %w", qq.q, err)
		}
	}
	return st, nil
}
