package database

import (
	"database/sql"
	"fmt"
)

// migration is one versioned schema step, applied transactionally and
// recorded in lms_internal. Destructive marks a step that drops or rewrites
// existing rows (e.g. a column type change); the daemon's --dry-run-migrations
// flag (spec.md §9) lists pending steps with this mark and exits without
// applying any of them. applyMigrations applies every pending step,
// destructive or not.
type migration struct {
	version     int
	statements  []string
	destructive bool
}

// migrations mirrors the teacher's ordered-slice-of-steps pattern
// (internal/database/schema.go): each entry is applied once, in order,
// inside its own transaction, and the highest applied version is recorded
// in lms_internal so re-opening an up-to-date database is a no-op.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS lms_internal (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS files (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				path         TEXT NOT NULL UNIQUE,
				mtime        INTEGER NOT NULL,
				size         INTEGER NOT NULL DEFAULT 0,
				dtime        INTEGER NOT NULL DEFAULT 0,
				itime        INTEGER NOT NULL,
				category     TEXT NOT NULL DEFAULT '',
				parser       TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_files_path_prefix ON files(path)`,
			`CREATE INDEX IF NOT EXISTS idx_files_dtime ON files(dtime)`,
			`CREATE INDEX IF NOT EXISTS idx_files_category ON files(category)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS audio_artists (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				name      TEXT NOT NULL,
				norm_name TEXT NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS audio_genres (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				name      TEXT NOT NULL,
				norm_name TEXT NOT NULL UNIQUE
			)`,
			`CREATE TABLE IF NOT EXISTS audio_albums (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				name      TEXT NOT NULL,
				norm_name TEXT NOT NULL,
				artist_id INTEGER REFERENCES audio_artists(id) ON DELETE SET NULL,
				UNIQUE(norm_name, artist_id)
			)`,
			`CREATE TABLE IF NOT EXISTS audios (
				id           INTEGER PRIMARY KEY,
				title        TEXT NOT NULL DEFAULT '',
				artist_id    INTEGER REFERENCES audio_artists(id) ON DELETE SET NULL,
				album_id     INTEGER REFERENCES audio_albums(id) ON DELETE SET NULL,
				genre_id     INTEGER REFERENCES audio_genres(id) ON DELETE SET NULL,
				trackno      INTEGER NOT NULL DEFAULT 0,
				release_date INTEGER NOT NULL DEFAULT 0,
				codec        TEXT NOT NULL DEFAULT '',
				bitrate      INTEGER NOT NULL DEFAULT 0,
				sampling_rate INTEGER NOT NULL DEFAULT 0,
				channels     INTEGER NOT NULL DEFAULT 0,
				length       INTEGER NOT NULL DEFAULT 0,
				dlna_profile TEXT NOT NULL DEFAULT '',
				dlna_mime    TEXT NOT NULL DEFAULT '',
				FOREIGN KEY(id) REFERENCES files(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audios_artist ON audios(artist_id)`,
			`CREATE INDEX IF NOT EXISTS idx_audios_album ON audios(album_id)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS images (
				id           INTEGER PRIMARY KEY,
				title        TEXT NOT NULL DEFAULT '',
				date         INTEGER NOT NULL DEFAULT 0,
				width        INTEGER NOT NULL DEFAULT 0,
				height       INTEGER NOT NULL DEFAULT 0,
				orientation  INTEGER NOT NULL DEFAULT 0,
				gps_lat      REAL,
				gps_long     REAL,
				dlna_profile TEXT NOT NULL DEFAULT '',
				dlna_mime    TEXT NOT NULL DEFAULT '',
				FOREIGN KEY(id) REFERENCES files(id) ON DELETE CASCADE
			)`,
		},
	},
	{
		version: 4,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS videos (
				id            INTEGER PRIMARY KEY,
				title         TEXT NOT NULL DEFAULT '',
				container     TEXT NOT NULL DEFAULT '',
				length        INTEGER NOT NULL DEFAULT 0,
				width         INTEGER NOT NULL DEFAULT 0,
				height        INTEGER NOT NULL DEFAULT 0,
				framerate     REAL NOT NULL DEFAULT 0,
				dlna_profile  TEXT NOT NULL DEFAULT '',
				dlna_mime     TEXT NOT NULL DEFAULT '',
				FOREIGN KEY(id) REFERENCES files(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS videos_videos (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				video_id   INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				stream_idx INTEGER NOT NULL DEFAULT 0,
				codec      TEXT NOT NULL DEFAULT '',
				bitrate    INTEGER NOT NULL DEFAULT 0,
				UNIQUE(video_id, stream_idx)
			)`,
			`CREATE TABLE IF NOT EXISTS videos_audios (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				video_id   INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				stream_idx INTEGER NOT NULL DEFAULT 0,
				codec      TEXT NOT NULL DEFAULT '',
				lang       TEXT NOT NULL DEFAULT '',
				channels   INTEGER NOT NULL DEFAULT 0,
				sampling_rate INTEGER NOT NULL DEFAULT 0,
				bitrate    INTEGER NOT NULL DEFAULT 0,
				UNIQUE(video_id, stream_idx)
			)`,
			`CREATE TABLE IF NOT EXISTS videos_subtitles (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				video_id   INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				stream_idx INTEGER NOT NULL DEFAULT 0,
				lang       TEXT NOT NULL DEFAULT '',
				external_path TEXT NOT NULL DEFAULT '',
				UNIQUE(video_id, stream_idx)
			)`,
		},
	},
	{
		version: 5,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS playlists (
				id    INTEGER PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				n_entries INTEGER NOT NULL DEFAULT 0,
				FOREIGN KEY(id) REFERENCES files(id) ON DELETE CASCADE
			)`,
		},
	},
	{
		// Cascade triggers: deleting a row from files must remove its
		// per-category row and, for videos, the stream rows hanging off it.
		// sqlite enforces FK-driven ON DELETE CASCADE only when
		// PRAGMA foreign_keys=ON, which the daemon sets per-connection; these
		// triggers are kept as a defense-in-depth duplicate of that cascade
		// so a connection opened without the pragma (e.g. an ad-hoc sqlite3
		// shell session) still behaves correctly.
		version: 6,
		statements: []string{
			`CREATE TRIGGER IF NOT EXISTS trg_files_delete_audios
				AFTER DELETE ON files BEGIN
					DELETE FROM audios WHERE id = OLD.id;
				END`,
			`CREATE TRIGGER IF NOT EXISTS trg_files_delete_images
				AFTER DELETE ON files BEGIN
					DELETE FROM images WHERE id = OLD.id;
				END`,
			`CREATE TRIGGER IF NOT EXISTS trg_files_delete_videos
				AFTER DELETE ON files BEGIN
					DELETE FROM videos WHERE id = OLD.id;
				END`,
			`CREATE TRIGGER IF NOT EXISTS trg_files_delete_playlists
				AFTER DELETE ON files BEGIN
					DELETE FROM playlists WHERE id = OLD.id;
				END`,
			`CREATE TRIGGER IF NOT EXISTS trg_videos_delete_streams
				AFTER DELETE ON videos BEGIN
					DELETE FROM videos_videos WHERE video_id = OLD.id;
					DELETE FROM videos_audios WHERE video_id = OLD.id;
					DELETE FROM videos_subtitles WHERE video_id = OLD.id;
				END`,
		},
	},
	{
		// Brings the audios row up to spec.md §3's full Audio record: the
		// container format parsers already detect (mp3/mp4/asf/...) and
		// hand to DLNA profile matching was never persisted, and
		// rating/playcnt round out the record even though no parser
		// populates them yet.
		version: 7,
		statements: []string{
			`ALTER TABLE audios ADD COLUMN container TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE audios ADD COLUMN rating INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE audios ADD COLUMN playcnt INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign_keys pragma: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS lms_internal (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("bootstrap lms_internal: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyOne(db, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func applyOne(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO lms_internal(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", m.version),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT value FROM lms_internal WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return v, nil
}

// latestVersion reports the highest non-destructive migration version. The
// --dry-run-migrations path does not use it; it lists pending steps through
// PreviewMigrations instead.
func latestVersion() int {
	v := 0
	for _, m := range migrations {
		if !m.destructive && m.version > v {
			v = m.version
		}
	}
	return v
}

// PendingMigration describes one migration step not yet applied to a
// database, the unit --dry-run-migrations (SPEC_FULL.md §9's resolution of
// the destructive-migration Open Question) previews without running.
type PendingMigration struct {
	Version     int
	Destructive bool
}

// pendingMigrations reports every migration step above db's current schema
// version without applying any of them.
func pendingMigrations(db *sql.DB) ([]PendingMigration, error) {
	current, err := schemaVersion(db)
	if err != nil {
		// A brand new database has no lms_internal table yet; that is not
		// an error here, it just means every migration is pending.
		current = 0
	}

	var pending []PendingMigration
	for _, m := range migrations {
		if m.version > current {
			pending = append(pending, PendingMigration{Version: m.version, Destructive: m.destructive})
		}
	}
	return pending, nil
}
