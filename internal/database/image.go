package database

import "fmt"

// ImageRecord mirrors one row of images.
type ImageRecord struct {
	ID          int64
	Title       string
	Date        int64
	Width       int
	Height      int
	Orientation int
	GPSLat      *float64
	GPSLong     *float64
	DLNAProfile string
	DLNAMime    string
}

func (s *Store) UpsertImage(id int64, img *ImageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO images(id, title, date, width, height, orientation,
			gps_lat, gps_long, dlna_profile, dlna_mime)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, date=excluded.date, width=excluded.width,
			height=excluded.height, orientation=excluded.orientation,
			gps_lat=excluded.gps_lat, gps_long=excluded.gps_long,
			dlna_profile=excluded.dlna_profile, dlna_mime=excluded.dlna_mime`,
		id, img.Title, img.Date, img.Width, img.Height, img.Orientation,
		img.GPSLat, img.GPSLong, img.DLNAProfile, img.DLNAMime,
	)
	if err != nil {
		return fmt.Errorf("upsert image id=%d: %w", id, err)
	}
	return nil
}
