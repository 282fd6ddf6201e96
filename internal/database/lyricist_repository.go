package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ChuckD30/lyricist/internal/lyricist"
)

const lyricistRepoTimeout = 2 * time.Second

// LyricistRepository stores lyricists with their songs and segments in
// Postgres. Children are removed by ON DELETE CASCADE.
type LyricistRepository struct {
	db    *sql.DB
	newID func() string
}

func NewLyricistRepository(conn *sql.DB) *LyricistRepository {
	return &LyricistRepository{db: conn, newID: uuid.NewString}
}

var _ lyricist.Repository = (*LyricistRepository)(nil)

func (r *LyricistRepository) CreateLyricist(ctx context.Context, name, description string) (lyricist.Lyricist, error) {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	l := lyricist.Lyricist{
		ID:          r.newID(),
		Name:        name,
		Description: description,
		Songs:       []lyricist.Song{},
	}

	const query = `
		INSERT INTO lyricists (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	if err := r.db.QueryRowContext(ctx, query, l.ID, l.Name, l.Description).Scan(&l.CreatedAt); err != nil {
		return lyricist.Lyricist{}, fmt.Errorf("insert lyricist: %w", err)
	}
	return l, nil
}

func (r *LyricistRepository) ListLyricists(ctx context.Context) ([]lyricist.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	const query = `
		SELECT l.id, l.name, l.description, l.created_at, COUNT(s.id)
		FROM lyricists l
		LEFT JOIN songs s ON s.lyricist_id = l.id
		GROUP BY l.id
		ORDER BY l.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lyricists: %w", err)
	}
	defer rows.Close()

	summaries := []lyricist.Summary{}
	for rows.Next() {
		var s lyricist.Summary
		if err := rows.Scan(&s.Lyricist.ID, &s.Lyricist.Name, &s.Lyricist.Description, &s.Lyricist.CreatedAt, &s.SongCount); err != nil {
			return nil, fmt.Errorf("scan lyricist: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *LyricistRepository) GetLyricist(ctx context.Context, id string) (*lyricist.Lyricist, error) {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	l := &lyricist.Lyricist{ID: id, Songs: []lyricist.Song{}}

	err := r.db.QueryRowContext(ctx,
		`SELECT name, description, created_at FROM lyricists WHERE id = $1`, id,
	).Scan(&l.Name, &l.Description, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lyricist: %w", err)
	}

	songRows, err := r.db.QueryContext(ctx, `
		SELECT id, title, artist, audio_url, cover_url, spotify_id
		FROM songs
		WHERE lyricist_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer songRows.Close()

	index := map[string]int{}
	for songRows.Next() {
		song := lyricist.Song{LyricistID: id, Segments: []lyricist.Segment{}}
		if err := songRows.Scan(&song.ID, &song.Title, &song.Artist, &song.AudioURL, &song.CoverURL, &song.SpotifyID); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		index[song.ID] = len(l.Songs)
		l.Songs = append(l.Songs, song)
	}
	if err := songRows.Err(); err != nil {
		return nil, err
	}
	if len(l.Songs) == 0 {
		return l, nil
	}

	segRows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.song_id, g.text, g.start_time, g.end_time
		FROM segments g
		JOIN songs s ON s.id = g.song_id
		WHERE s.lyricist_id = $1
		ORDER BY g.start_time, g.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer segRows.Close()

	for segRows.Next() {
		var seg lyricist.Segment
		if err := segRows.Scan(&seg.ID, &seg.SongID, &seg.Text, &seg.StartTime, &seg.EndTime); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if i, ok := index[seg.SongID]; ok {
			l.Songs[i].Segments = append(l.Songs[i].Segments, seg)
		}
	}
	if err := segRows.Err(); err != nil {
		return nil, err
	}

	return l, nil
}

func (r *LyricistRepository) UpdateLyricist(ctx context.Context, id string, update lyricist.LyricistUpdate) error {
	const query = `
		UPDATE lyricists
		SET name = COALESCE($2, name),
			description = COALESCE($3, description)
		WHERE id = $1
	`
	return r.execOne(ctx, "update lyricist", query, id, update.Name, update.Description)
}

func (r *LyricistRepository) DeleteLyricist(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete lyricist", `DELETE FROM lyricists WHERE id = $1`, id)
}

func (r *LyricistRepository) AddSong(ctx context.Context, lyricistID string, in lyricist.NewSong) (lyricist.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return lyricist.Song{}, fmt.Errorf("begin add song: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	song := lyricist.Song{
		ID:         r.newID(),
		LyricistID: lyricistID,
		Title:      in.Title,
		Artist:     in.Artist,
		AudioURL:   in.AudioURL,
		CoverURL:   in.CoverURL,
		SpotifyID:  in.SpotifyID,
		Segments:   make([]lyricist.Segment, 0, len(in.Segments)),
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO songs (id, lyricist_id, title, artist, audio_url, cover_url, spotify_id)
		SELECT $1, id, $3, $4, $5, $6, $7 FROM lyricists WHERE id = $2
	`, song.ID, lyricistID, song.Title, song.Artist, song.AudioURL, song.CoverURL, song.SpotifyID)
	if err != nil {
		return lyricist.Song{}, fmt.Errorf("insert song: %w", err)
	}
	if err := expectOne(res); err != nil {
		return lyricist.Song{}, err
	}

	for _, s := range in.Segments {
		seg := lyricist.Segment{
			ID:        r.newID(),
			SongID:    song.ID,
			Text:      s.Text,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		}
		if _, err := tx.ExecContext(ctx, insertSegment, seg.ID, seg.SongID, seg.Text, seg.StartTime, seg.EndTime); err != nil {
			return lyricist.Song{}, fmt.Errorf("insert segment: %w", err)
		}
		song.Segments = append(song.Segments, seg)
	}

	if err := tx.Commit(); err != nil {
		return lyricist.Song{}, fmt.Errorf("commit add song: %w", err)
	}
	return song, nil
}

func (r *LyricistRepository) UpdateSong(ctx context.Context, songID string, update lyricist.SongUpdate) error {
	const query = `
		UPDATE songs
		SET title = $2, artist = $3, audio_url = $4, cover_url = $5
		WHERE id = $1
	`
	return r.execOne(ctx, "update song", query, songID, update.Title, update.Artist, update.AudioURL, update.CoverURL)
}

func (r *LyricistRepository) DeleteSong(ctx context.Context, songID string) error {
	return r.execOne(ctx, "delete song", `DELETE FROM songs WHERE id = $1`, songID)
}

const insertSegment = `
	INSERT INTO segments (id, song_id, text, start_time, end_time)
	VALUES ($1, $2, $3, $4, $5)
`

func (r *LyricistRepository) AddSegment(ctx context.Context, songID string, in lyricist.NewSegment) (lyricist.Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM songs WHERE id = $1)`, songID).Scan(&exists); err != nil {
		return lyricist.Segment{}, fmt.Errorf("check song: %w", err)
	}
	if !exists {
		return lyricist.Segment{}, lyricist.ErrNotFound
	}

	seg := lyricist.Segment{
		ID:        r.newID(),
		SongID:    songID,
		Text:      in.Text,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}
	if _, err := r.db.ExecContext(ctx, insertSegment, seg.ID, seg.SongID, seg.Text, seg.StartTime, seg.EndTime); err != nil {
		return lyricist.Segment{}, fmt.Errorf("insert segment: %w", err)
	}
	return seg, nil
}

func (r *LyricistRepository) UpdateSegment(ctx context.Context, segmentID string, update lyricist.SegmentUpdate) error {
	const query = `
		UPDATE segments
		SET text = $2, start_time = $3, end_time = $4
		WHERE id = $1
	`
	return r.execOne(ctx, "update segment", query, segmentID, update.Text, update.StartTime, update.EndTime)
}

func (r *LyricistRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, lyricistRepoTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lyricist.ErrNotFound
	}
	return nil
}
