package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuckD30/lyricist/internal/lyricist"
)

func newMockRepo(t *testing.T) (*LyricistRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	repo := NewLyricistRepository(conn)
	n := 0
	repo.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return repo, mock
}

func TestCreateLyricist(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO lyricists").
		WithArgs("id-1", "Kanye", "College dropout").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	l, err := repo.CreateLyricist(context.Background(), "Kanye", "College dropout")
	require.NoError(t, err)
	assert.Equal(t, "id-1", l.ID)
	assert.Equal(t, created, l.CreatedAt)
	assert.Empty(t, l.Songs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLyricistsIncludesSongCount(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT l.id, l.name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "count"}).
			AddRow("b", "Newer", "", now, 0).
			AddRow("a", "Older", "desc", now.Add(-time.Hour), 3))

	list, err := repo.ListLyricists(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Newer", list[0].Lyricist.Name)
	assert.Equal(t, 3, list[1].SongCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLyricistMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT name, description, created_at FROM lyricists").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	l, err := repo.GetLyricist(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLyricistNestsSegments(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT name, description, created_at FROM lyricists").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at"}).AddRow("Kanye", "", time.Now()))
	mock.ExpectQuery("FROM songs").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "artist", "audio_url", "cover_url", "spotify_id"}).
			AddRow("s1", "Stronger", "Kanye West", "", "", "4fzsfWzRhPawzqhX8Qt9F3").
			AddRow("s2", "Local", "", "https://example.com/a.mp3", "", ""))
	mock.ExpectQuery("FROM segments g").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "song_id", "text", "start_time", "end_time"}).
			AddRow("g1", "s1", "Work it", 30.0, 45.0).
			AddRow("g2", "s2", "Intro", 0.0, 5.0).
			AddRow("g3", "s1", "Harder", 50.0, 60.0))

	l, err := repo.GetLyricist(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, l)
	require.Len(t, l.Songs, 2)

	assert.Equal(t, "l1", l.Songs[0].LyricistID)
	require.Len(t, l.Songs[0].Segments, 2)
	assert.Equal(t, "g3", l.Songs[0].Segments[1].ID)
	require.Len(t, l.Songs[1].Segments, 1)
	assert.InDelta(t, 5.0, l.Songs[1].Segments[0].EndTime, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLyricistWithoutSongsSkipsSegmentQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT name, description, created_at FROM lyricists").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "description", "created_at"}).AddRow("Empty", "", time.Now()))
	mock.ExpectQuery("FROM songs").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "artist", "audio_url", "cover_url", "spotify_id"}))

	l, err := repo.GetLyricist(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Empty(t, l.Songs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLyricistPartial(t *testing.T) {
	repo, mock := newMockRepo(t)
	desc := "new description"

	mock.ExpectExec("UPDATE lyricists").
		WithArgs("l1", nil, desc).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLyricist(context.Background(), "l1", lyricist.LyricistUpdate{Description: &desc})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLyricistNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM lyricists").
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteLyricist(context.Background(), "nope")
	assert.ErrorIs(t, err, lyricist.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSongInsertsSegmentsInTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO songs").
		WithArgs("id-1", "l1", "Stronger", "Kanye West", "", "", "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO segments").
		WithArgs("id-2", "id-1", "Work it", 30.0, 45.2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	song, err := repo.AddSong(context.Background(), "l1", lyricist.NewSong{
		Title:     "Stronger",
		Artist:    "Kanye West",
		SpotifyID: "abc",
		Segments:  []lyricist.NewSegment{{Text: "Work it", StartTime: 30, EndTime: 45.2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", song.ID)
	require.Len(t, song.Segments, 1)
	assert.Equal(t, "id-1", song.Segments[0].SongID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSongRollsBackOnSegmentFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO songs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO segments").WillReturnError(fmt.Errorf("check constraint"))
	mock.ExpectRollback()

	_, err := repo.AddSong(context.Background(), "l1", lyricist.NewSong{
		Title:    "Broken",
		Segments: []lyricist.NewSegment{{StartTime: 5, EndTime: 1}},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSongUnknownLyricist(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO songs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.AddSong(context.Background(), "ghost", lyricist.NewSong{Title: "x"})
	assert.ErrorIs(t, err, lyricist.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSegmentRequiresSong(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.AddSegment(context.Background(), "s1", lyricist.NewSegment{StartTime: 1, EndTime: 2})
	assert.ErrorIs(t, err, lyricist.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSegment(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO segments").
		WithArgs("id-1", "s1", "Chorus", 10.0, 20.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	seg, err := repo.AddSegment(context.Background(), "s1", lyricist.NewSegment{Text: "Chorus", StartTime: 10, EndTime: 20})
	require.NoError(t, err)
	assert.Equal(t, "id-1", seg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSegmentAndSong(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE segments").
		WithArgs("g1", "Verse", 1.0, 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE songs").
		WithArgs("s1", "Title", "Artist", "https://a", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateSegment(context.Background(), "g1", lyricist.SegmentUpdate{Text: "Verse", StartTime: 1, EndTime: 4}))

	err := repo.UpdateSong(context.Background(), "s1", lyricist.SongUpdate{Title: "Title", Artist: "Artist", AudioURL: "https://a"})
	assert.ErrorIs(t, err, lyricist.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
