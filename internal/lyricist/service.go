package lyricist

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

var ErrRepositoryNil = errors.New("lyricist repository is nil")

type Repository interface {
	CreateLyricist(ctx context.Context, name, description string) (Lyricist, error)
	ListLyricists(ctx context.Context) ([]Summary, error)
	// GetLyricist returns nil without error when the lyricist does not exist.
	GetLyricist(ctx context.Context, id string) (*Lyricist, error)
	UpdateLyricist(ctx context.Context, id string, update LyricistUpdate) error
	DeleteLyricist(ctx context.Context, id string) error
	AddSong(ctx context.Context, lyricistID string, song NewSong) (Song, error)
	UpdateSong(ctx context.Context, songID string, update SongUpdate) error
	DeleteSong(ctx context.Context, songID string) error
	AddSegment(ctx context.Context, songID string, segment NewSegment) (Segment, error)
	UpdateSegment(ctx context.Context, segmentID string, update SegmentUpdate) error
}

// Notifier tells views of a lyricist that its data changed.
type Notifier interface {
	Publish(ctx context.Context, lyricistID string) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      logger,
	}
}

func (s *Service) CreateLyricist(ctx context.Context, name, description string) (Lyricist, error) {
	if err := validateName(name); err != nil {
		return Lyricist{}, err
	}
	if s.repo == nil {
		return Lyricist{}, ErrRepositoryNil
	}
	return s.repo.CreateLyricist(ctx, strings.TrimSpace(name), strings.TrimSpace(description))
}

func (s *Service) ListLyricists(ctx context.Context) ([]Summary, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNil
	}
	return s.repo.ListLyricists(ctx)
}

func (s *Service) GetLyricist(ctx context.Context, id string) (*Lyricist, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNil
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return s.repo.GetLyricist(ctx, id)
}

func (s *Service) UpdateLyricist(ctx context.Context, id string, update LyricistUpdate) error {
	if update.Name != nil {
		if err := validateName(*update.Name); err != nil {
			return err
		}
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if s.repo == nil {
		return ErrRepositoryNil
	}
	if err := s.repo.UpdateLyricist(ctx, id, update); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

func (s *Service) DeleteLyricist(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrRepositoryNil
	}
	if err := s.repo.DeleteLyricist(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, id)
	return nil
}

func (s *Service) AddSong(ctx context.Context, lyricistID string, song NewSong) (Song, error) {
	if err := validateNewSong(song); err != nil {
		return Song{}, err
	}
	if s.repo == nil {
		return Song{}, ErrRepositoryNil
	}
	created, err := s.repo.AddSong(ctx, lyricistID, song)
	if err != nil {
		return Song{}, err
	}
	s.notify(ctx, lyricistID)
	return created, nil
}

func (s *Service) UpdateSong(ctx context.Context, songID, lyricistID string, update SongUpdate) error {
	if strings.TrimSpace(update.Title) == "" {
		return ErrTitleRequired
	}
	if s.repo == nil {
		return ErrRepositoryNil
	}
	if err := s.repo.UpdateSong(ctx, songID, update); err != nil {
		return err
	}
	s.notify(ctx, lyricistID)
	return nil
}

func (s *Service) DeleteSong(ctx context.Context, songID, lyricistID string) error {
	if s.repo == nil {
		return ErrRepositoryNil
	}
	if err := s.repo.DeleteSong(ctx, songID); err != nil {
		return err
	}
	s.notify(ctx, lyricistID)
	return nil
}

func (s *Service) AddSegment(ctx context.Context, songID, lyricistID string, segment NewSegment) (Segment, error) {
	if err := validateSegmentRange(segment.StartTime, segment.EndTime); err != nil {
		return Segment{}, err
	}
	if s.repo == nil {
		return Segment{}, ErrRepositoryNil
	}
	created, err := s.repo.AddSegment(ctx, songID, segment)
	if err != nil {
		return Segment{}, err
	}
	s.notify(ctx, lyricistID)
	return created, nil
}

func (s *Service) UpdateSegment(ctx context.Context, segmentID, lyricistID string, update SegmentUpdate) error {
	if err := validateSegmentRange(update.StartTime, update.EndTime); err != nil {
		return err
	}
	if s.repo == nil {
		return ErrRepositoryNil
	}
	if err := s.repo.UpdateSegment(ctx, segmentID, update); err != nil {
		return err
	}
	s.notify(ctx, lyricistID)
	return nil
}

func (s *Service) notify(ctx context.Context, lyricistID string) {
	if s.notifier == nil || lyricistID == "" {
		return
	}
	if err := s.notifier.Publish(ctx, lyricistID); err != nil {
		s.log.Warn().Err(err).Str("lyricist_id", lyricistID).Msg("failed to publish refresh")
	}
}
