package database

import "fmt"

// AudioRecord mirrors one row of audios, plus the artist/album/genre names
// resolved by a join (parsers deal in names, never in the dedup ids).
type AudioRecord struct {
	ID           int64
	Title        string
	Artist       string
	Album        string
	Genre        string
	TrackNo      int
	ReleaseDate  int64
	Codec        string
	Container    string
	Bitrate      int
	SamplingRate int
	Channels     int
	Length       int
	DLNAProfile  string
	DLNAMime     string
	Rating       int
	PlayCount    int

	resolvedArtistID int64
	resolvedAlbumID  int64
	resolvedGenreID  int64
}

// ResolveIDs looks up (or creates) the artist/album/genre rows for a's
// names and caches their ids on a, ready for UpsertAudio. Each audio parser
// plugin calls ResolveIDs once per file before it calls UpsertAudio.
func (s *Store) ResolveIDs(a *AudioRecord) error {
	artistID, err := s.GetOrCreateArtist(a.Artist)
	if err != nil {
		return err
	}
	albumID, err := s.GetOrCreateAlbum(a.Album, artistID)
	if err != nil {
		return err
	}
	genreID, err := s.GetOrCreateGenre(a.Genre)
	if err != nil {
		return err
	}
	a.resolvedArtistID, a.resolvedAlbumID, a.resolvedGenreID = artistID, albumID, genreID
	return nil
}

// GetOrCreateArtist returns the id of the artist row matching name,
// case/whitespace-insensitively, inserting one if this is the first time
// the name has been seen. An empty name creates no row and returns id 0,
// stored as a NULL FK.
func (s *Store) GetOrCreateArtist(name string) (int64, error) {
	return s.getOrCreateNamed("audio_artists", name)
}

func (s *Store) GetOrCreateGenre(name string) (int64, error) {
	return s.getOrCreateNamed("audio_genres", name)
}

// GetOrCreateAlbum dedups by (normalized name, artist), so "Abbey Road" by
// two different artists is two distinct album rows.
func (s *Store) GetOrCreateAlbum(name string, artistID int64) (int64, error) {
	if name == "" {
		return 0, nil
	}
	norm := normalizeName(name)

	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM audio_albums WHERE norm_name = ? AND (artist_id = ? OR (artist_id IS NULL AND ? = 0))`,
		norm, artistID, artistID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}

	var artistFK any
	if artistID != 0 {
		artistFK = artistID
	}
	res, err := s.db.Exec(
		`INSERT INTO audio_albums(name, norm_name, artist_id) VALUES(?, ?, ?)`,
		name, norm, artistFK,
	)
	if err != nil {
		return 0, fmt.Errorf("insert album %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (s *Store) getOrCreateNamed(table, name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	norm := normalizeName(name)

	var id int64
	err := s.db.QueryRow(fmt.Sprintf(`SELECT id FROM %s WHERE norm_name = ?`, table), norm).Scan(&id)
	if err == nil {
		return id, nil
	}

	res, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s(name, norm_name) VALUES(?, ?)`, table), name, norm)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	return res.LastInsertId()
}

// UpsertAudio writes the per-category row for a file already present in
// files. id must already exist (the caller inserts/updates the files row
// first, per spec.md §4.2's file-then-category write order).
func (s *Store) UpsertAudio(id int64, a *AudioRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO audios(id, title, artist_id, album_id, genre_id, trackno,
			release_date, codec, container, bitrate, sampling_rate, channels, length,
			dlna_profile, dlna_mime, rating, playcnt)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, artist_id=excluded.artist_id,
			album_id=excluded.album_id, genre_id=excluded.genre_id,
			trackno=excluded.trackno, release_date=excluded.release_date,
			codec=excluded.codec, container=excluded.container, bitrate=excluded.bitrate,
			sampling_rate=excluded.sampling_rate, channels=excluded.channels,
			length=excluded.length, dlna_profile=excluded.dlna_profile,
			dlna_mime=excluded.dlna_mime, rating=excluded.rating, playcnt=excluded.playcnt`,
		id, a.Title, nullIfZero(a.artistID()), nullIfZero(a.albumID()), nullIfZero(a.genreID()),
		a.TrackNo, a.ReleaseDate, a.Codec, a.Container, a.Bitrate, a.SamplingRate, a.Channels, a.Length,
		a.DLNAProfile, a.DLNAMime, a.Rating, a.PlayCount,
	)
	if err != nil {
		return fmt.Errorf("upsert audio id=%d: %w", id, err)
	}
	return nil
}

// artistID/albumID/genreID return the ids ResolveIDs cached after resolving
// names via GetOrCreate*; AudioRecord's exported fields carry only names. The
// parser plugin calls ResolveIDs before UpsertAudio.
func (a *AudioRecord) artistID() int64 { return a.resolvedArtistID }
func (a *AudioRecord) albumID() int64  { return a.resolvedAlbumID }
func (a *AudioRecord) genreID() int64  { return a.resolvedGenreID }

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
