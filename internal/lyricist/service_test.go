package lyricist

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLyricist(ctx context.Context, name, description string) (Lyricist, error) {
	args := m.Called(ctx, name, description)
	return args.Get(0).(Lyricist), args.Error(1)
}

func (m *MockRepository) ListLyricists(ctx context.Context) ([]Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Summary), args.Error(1)
}

func (m *MockRepository) GetLyricist(ctx context.Context, id string) (*Lyricist, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Lyricist), args.Error(1)
}

func (m *MockRepository) UpdateLyricist(ctx context.Context, id string, update LyricistUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

func (m *MockRepository) DeleteLyricist(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) AddSong(ctx context.Context, lyricistID string, song NewSong) (Song, error) {
	args := m.Called(ctx, lyricistID, song)
	return args.Get(0).(Song), args.Error(1)
}

func (m *MockRepository) UpdateSong(ctx context.Context, songID string, update SongUpdate) error {
	return m.Called(ctx, songID, update).Error(0)
}

func (m *MockRepository) DeleteSong(ctx context.Context, songID string) error {
	return m.Called(ctx, songID).Error(0)
}

func (m *MockRepository) AddSegment(ctx context.Context, songID string, segment NewSegment) (Segment, error) {
	args := m.Called(ctx, songID, segment)
	return args.Get(0).(Segment), args.Error(1)
}

func (m *MockRepository) UpdateSegment(ctx context.Context, segmentID string, update SegmentUpdate) error {
	return m.Called(ctx, segmentID, update).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, lyricistID string) error {
	return m.Called(ctx, lyricistID).Error(0)
}

func newTestService() (*Service, *MockRepository, *MockNotifier) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	return NewService(repo, notifier, zerolog.Nop()), repo, notifier
}

func TestCreateLyricist(t *testing.T) {
	t.Run("name required", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.CreateLyricist(context.Background(), "   ", "desc")
		assert.ErrorIs(t, err, ErrNameRequired)
		repo.AssertNotCalled(t, "CreateLyricist", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("trims input", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("CreateLyricist", mock.Anything, "Kanye", "hooks").Return(Lyricist{ID: "l1", Name: "Kanye"}, nil)

		got, err := svc.CreateLyricist(context.Background(), " Kanye ", " hooks ")
		require.NoError(t, err)
		assert.Equal(t, "l1", got.ID)
		repo.AssertExpectations(t)
	})
}

func TestUpdateLyricistPublishesRefresh(t *testing.T) {
	svc, repo, notifier := newTestService()
	name := "New Name"
	repo.On("UpdateLyricist", mock.Anything, "l1", mock.AnythingOfType("LyricistUpdate")).Return(nil)
	notifier.On("Publish", mock.Anything, "l1").Return(nil)

	require.NoError(t, svc.UpdateLyricist(context.Background(), "l1", LyricistUpdate{Name: &name}))
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestUpdateLyricistRejectsEmptyName(t *testing.T) {
	svc, repo, notifier := newTestService()
	empty := ""

	err := svc.UpdateLyricist(context.Background(), "l1", LyricistUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrNameRequired)
	repo.AssertNotCalled(t, "UpdateLyricist", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAddSongValidatesSegments(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.AddSong(context.Background(), "l1", NewSong{
		Title:    "Stronger",
		Segments: []NewSegment{{Text: "bad", StartTime: 45, EndTime: 30}},
	})
	assert.ErrorIs(t, err, ErrInvalidSegmentRange)

	_, err = svc.AddSong(context.Background(), "l1", NewSong{Title: ""})
	assert.ErrorIs(t, err, ErrTitleRequired)

	repo.AssertNotCalled(t, "AddSong", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddSongNotifies(t *testing.T) {
	svc, repo, notifier := newTestService()
	in := NewSong{
		Title:    "Stronger",
		Artist:   "Kanye West",
		Segments: []NewSegment{{Text: "hook", StartTime: 30, EndTime: 45}},
	}
	repo.On("AddSong", mock.Anything, "l1", in).Return(Song{ID: "s1", Title: "Stronger"}, nil)
	notifier.On("Publish", mock.Anything, "l1").Return(nil)

	got, err := svc.AddSong(context.Background(), "l1", in)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	notifier.AssertExpectations(t)
}

func TestUpdateSegment(t *testing.T) {
	t.Run("rejects inverted range", func(t *testing.T) {
		svc, repo, _ := newTestService()

		err := svc.UpdateSegment(context.Background(), "seg", "l1", SegmentUpdate{StartTime: 10, EndTime: 10})
		assert.ErrorIs(t, err, ErrInvalidSegmentRange)
		repo.AssertNotCalled(t, "UpdateSegment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("notify failure is not fatal", func(t *testing.T) {
		svc, repo, notifier := newTestService()
		update := SegmentUpdate{Text: "x", StartTime: 1, EndTime: 2}
		repo.On("UpdateSegment", mock.Anything, "seg", update).Return(nil)
		notifier.On("Publish", mock.Anything, "l1").Return(errors.New("redis down"))

		assert.NoError(t, svc.UpdateSegment(context.Background(), "seg", "l1", update))
	})

	t.Run("repository error propagates", func(t *testing.T) {
		svc, repo, notifier := newTestService()
		update := SegmentUpdate{Text: "x", StartTime: 1, EndTime: 2}
		repo.On("UpdateSegment", mock.Anything, "seg", update).Return(ErrNotFound)

		err := svc.UpdateSegment(context.Background(), "seg", "l1", update)
		assert.ErrorIs(t, err, ErrNotFound)
		notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func TestGetLyricistEmptyID(t *testing.T) {
	svc, repo, _ := newTestService()

	got, err := svc.GetLyricist(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, got)
	repo.AssertNotCalled(t, "GetLyricist", mock.Anything, mock.Anything)
}

func TestSongHelpers(t *testing.T) {
	song := Song{
		ID:        "s1",
		SpotifyID: "abc",
		Segments:  []Segment{{ID: "a", StartTime: 1, EndTime: 3}},
	}
	assert.True(t, song.IsRemote())
	assert.Equal(t, "spotify:track:abc", song.TrackURI())

	seg, ok := song.FindSegment("a")
	require.True(t, ok)
	assert.InDelta(t, 2.0, seg.Duration(), 0.0001)

	_, ok = song.FindSegment("missing")
	assert.False(t, ok)

	_, ok = FindSong([]Song{song}, "s1")
	assert.True(t, ok)
	assert.Equal(t, "", Song{}.TrackURI())
}
