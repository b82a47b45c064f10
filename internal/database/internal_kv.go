package database

import "database/sql"

// UpdateID reports the database's current change generation: a counter
// bumped once per completed scan, so a client polling the status endpoint
// can tell "nothing changed since I last looked" apart from "you need to
// re-read everything" without diffing the whole files table.
func (s *Store) UpdateID() (int64, error) {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM lms_internal WHERE key = 'update_id'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

// BumpUpdateID increments and returns the new update id.
func (s *Store) BumpUpdateID() (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var v int64
	err = tx.QueryRow(`SELECT value FROM lms_internal WHERE key = 'update_id'`).Scan(&v)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	v++

	if _, err := tx.Exec(
		`INSERT INTO lms_internal(key, value) VALUES('update_id', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, v,
	); err != nil {
		return 0, err
	}

	return v, tx.Commit()
}
