package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FileRecord mirrors one row of the files table: the path-keyed identity
// shared by every media category (spec.md §3).
type FileRecord struct {
	ID       int64
	Path     string
	Mtime    int64
	Size     int64
	Dtime    int64 // 0 means live; non-zero is the tombstone timestamp
	Itime    int64 // insert time; Revive resets it to the revival time
	Category string
	Parser   string
}

const (
	queryGetFileByPath = `SELECT id, path, mtime, size, dtime, itime, category, parser FROM files WHERE path = ?`
	queryInsertFile    = `INSERT INTO files(path, mtime, size, dtime, itime, category, parser) VALUES(?, ?, ?, 0, ?, ?, ?)`
	queryUpdateFile    = `UPDATE files SET mtime = ?, size = ?, dtime = 0, category = ?, parser = ? WHERE id = ?`
	querySetDtime      = `UPDATE files SET dtime = ? WHERE id = ?`
	queryReviveFile    = `UPDATE files SET mtime = ?, size = ?, dtime = 0, itime = ?, category = ?, parser = ? WHERE id = ?`
	queryDeleteFile    = `DELETE FROM files WHERE id = ?`
	querySelectPrefix  = `SELECT id, path, mtime, size, dtime, itime, category, parser FROM files WHERE path LIKE ? ESCAPE '\' ORDER BY path`
	querySelectTombstonesOlderThan = `SELECT id, path, mtime, size, dtime, itime, category, parser FROM files WHERE dtime <> 0 AND dtime < ?`
)

// GetFileByPath looks up a file by its absolute path. Returns sql.ErrNoRows
// (unwrapped, so callers can use errors.Is) when the path has never been
// scanned.
func (s *Store) GetFileByPath(path string) (*FileRecord, error) {
	row := s.db.QueryRow(queryGetFileByPath, path)
	return scanFileRow(row)
}

// InsertFile records a newly discovered file. now is the wall-clock time in
// unix seconds, passed in rather than read internally so callers (and
// tests) control it.
func (s *Store) InsertFile(f *FileRecord, now int64) (int64, error) {
	res, err := s.db.Exec(queryInsertFile, f.Path, f.Mtime, f.Size, now, f.Category, f.Parser)
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", f.Path, err)
	}
	return res.LastInsertId()
}

// UpdateFile refreshes mtime/size/category/parser for an existing,
// currently-live file (the "outdated" status of spec.md §4.5).
func (s *Store) UpdateFile(id int64, f *FileRecord) error {
	_, err := s.db.Exec(queryUpdateFile, f.Mtime, f.Size, f.Category, f.Parser, id)
	if err != nil {
		return fmt.Errorf("update file id=%d: %w", id, err)
	}
	return nil
}

// SetDtime tombstones a file: it is marked deleted but its row (and any
// per-category metadata row referencing it) is retained until a later
// maintenance pass purges rows whose dtime has aged past delete_older_than.
func (s *Store) SetDtime(id int64, dtime int64) error {
	_, err := s.db.Exec(querySetDtime, dtime, id)
	if err != nil {
		return fmt.Errorf("tombstone file id=%d: %w", id, err)
	}
	return nil
}

// Revive clears a tombstoned file's dtime and refreshes its stat fields,
// implementing the "revived" status: a path that reappears with the same
// id before its tombstone was purged is treated as the same logical file
// rather than a new insert (spec.md §4.5). itime is stamped to now, same
// as a fresh insert, since spec.md §3 treats a revival as a new sighting.
func (s *Store) Revive(id int64, f *FileRecord, now int64) error {
	_, err := s.db.Exec(queryReviveFile, f.Mtime, f.Size, now, f.Category, f.Parser, id)
	if err != nil {
		return fmt.Errorf("revive file id=%d: %w", id, err)
	}
	return nil
}

// DeleteFile permanently removes a file row and, via the cascade triggers
// in schema.go, its per-category metadata.
func (s *Store) DeleteFile(id int64) error {
	_, err := s.db.Exec(queryDeleteFile, id)
	if err != nil {
		return fmt.Errorf("delete file id=%d: %w", id, err)
	}
	return nil
}

// SelectFilesLike returns every live-or-tombstoned row whose path is under
// prefix, ordered by path so the scanner can walk it in lockstep with a
// sorted directory listing to find deletions.
func (s *Store) SelectFilesLike(prefix string) ([]*FileRecord, error) {
	rows, err := s.db.Query(querySelectPrefix, escapeLikePrefix(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("select files under %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		f, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TombstonesOlderThan returns files that were marked deleted before the
// given unix-seconds cutoff, candidates for the maintenance purge.
func (s *Store) TombstonesOlderThan(cutoff int64) ([]*FileRecord, error) {
	rows, err := s.db.Query(querySelectTombstonesOlderThan, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select aged tombstones: %w", err)
	}
	defer rows.Close()

	var out []*FileRecord
	for rows.Next() {
		f, err := scanFileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// escapeLikePrefix escapes '%' and '_' so a literal directory prefix used
// in a LIKE pattern doesn't accidentally act as a wildcard.
func escapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRow(row *sql.Row) (*FileRecord, error) {
	return scanFileRowScanner(row)
}

func scanFileRows(rows *sql.Rows) (*FileRecord, error) {
	return scanFileRowScanner(rows)
}

func scanFileRowScanner(sc rowScanner) (*FileRecord, error) {
	f := &FileRecord{}
	err := sc.Scan(&f.ID, &f.Path, &f.Mtime, &f.Size, &f.Dtime, &f.Itime, &f.Category, &f.Parser)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NowUnix is the single place scanning code reads wall-clock time, so tests
// can stand in a fixed clock instead of depending on real time.
func NowUnix() int64 { return time.Now().Unix() }
