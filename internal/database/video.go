package database

import "fmt"

// VideoRecord mirrors one row of videos plus its stream sub-rows. A video
// container can carry more than one video/audio/subtitle stream (e.g. a
// multi-language MKV), hence the slices.
type VideoRecord struct {
	ID          int64
	Title       string
	Container   string
	Length      int
	Width       int
	Height      int
	Framerate   float64
	DLNAProfile string
	DLNAMime    string

	VideoStreams    []VideoStream
	AudioStreams    []AudioStream
	SubtitleStreams []SubtitleStream
}

type VideoStream struct {
	Index   int
	Codec   string
	Bitrate int
}

type AudioStream struct {
	Index        int
	Codec        string
	Lang         string
	Channels     int
	SamplingRate int
	Bitrate      int
}

type SubtitleStream struct {
	Index        int
	Lang         string
	ExternalPath string
}

// UpsertVideo writes the videos row and replaces its stream sub-rows
// wholesale inside one transaction: a re-scan of a changed file reports its
// current stream set, which may differ in count from what's stored (a
// remux can add or drop a track), so delete-then-insert is simpler and
// cheaper than diffing stream rows individually.
func (s *Store) UpsertVideo(id int64, v *VideoRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO videos(id, title, container, length, width, height,
			framerate, dlna_profile, dlna_mime)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, container=excluded.container,
			length=excluded.length, width=excluded.width, height=excluded.height,
			framerate=excluded.framerate, dlna_profile=excluded.dlna_profile,
			dlna_mime=excluded.dlna_mime`,
		id, v.Title, v.Container, v.Length, v.Width, v.Height, v.Framerate,
		v.DLNAProfile, v.DLNAMime,
	)
	if err != nil {
		return fmt.Errorf("upsert video id=%d: %w", id, err)
	}

	if _, err := tx.Exec(`DELETE FROM videos_videos WHERE video_id = ?`, id); err != nil {
		return err
	}
	for _, vs := range v.VideoStreams {
		if _, err := tx.Exec(
			`INSERT INTO videos_videos(video_id, stream_idx, codec, bitrate) VALUES(?, ?, ?, ?)`,
			id, vs.Index, vs.Codec, vs.Bitrate,
		); err != nil {
			return fmt.Errorf("insert video stream %d: %w", vs.Index, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM videos_audios WHERE video_id = ?`, id); err != nil {
		return err
	}
	for _, as := range v.AudioStreams {
		if _, err := tx.Exec(
			`INSERT INTO videos_audios(video_id, stream_idx, codec, lang, channels, sampling_rate, bitrate)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, as.Index, as.Codec, as.Lang, as.Channels, as.SamplingRate, as.Bitrate,
		); err != nil {
			return fmt.Errorf("insert audio stream %d: %w", as.Index, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM videos_subtitles WHERE video_id = ?`, id); err != nil {
		return err
	}
	for _, ss := range v.SubtitleStreams {
		if _, err := tx.Exec(
			`INSERT INTO videos_subtitles(video_id, stream_idx, lang, external_path) VALUES(?, ?, ?, ?)`,
			id, ss.Index, ss.Lang, ss.ExternalPath,
		); err != nil {
			return fmt.Errorf("insert subtitle stream %d: %w", ss.Index, err)
		}
	}

	return tx.Commit()
}
