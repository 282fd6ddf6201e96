package lyricist

import (
	"time"
)

// SpotifyTrackURIPrefix turns a Spotify track ID into a playable URI.
const SpotifyTrackURIPrefix = "spotify:track:"

type Lyricist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Songs       []Song    `json:"songs"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Song struct {
	ID         string    `json:"id"`
	LyricistID string    `json:"lyricistId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	AudioURL   string    `json:"audioUrl"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	SpotifyID  string    `json:"spotifyId,omitempty"`
	Segments   []Segment `json:"segments"`
}

// IsRemote reports whether the song plays on a Spotify Connect device.
func (s Song) IsRemote() bool {
	return s.SpotifyID != ""
}

func (s Song) TrackURI() string {
	if s.SpotifyID == "" {
		return ""
	}
	return SpotifyTrackURIPrefix + s.SpotifyID
}

func (s Song) FindSegment(id string) (Segment, bool) {
	for _, seg := range s.Segments {
		if seg.ID == id {
			return seg, true
		}
	}
	return Segment{}, false
}

// Segment is a lyric snippet bounded by StartTime and EndTime in seconds.
type Segment struct {
	ID        string  `json:"id"`
	SongID    string  `json:"songId"`
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

func (s Segment) Duration() float64 {
	return s.EndTime - s.StartTime
}

type Summary struct {
	Lyricist  Lyricist `json:"lyricist"`
	SongCount int      `json:"songCount"`
}

// FindSong looks a song up by ID.
func FindSong(songs []Song, id string) (Song, bool) {
	for _, s := range songs {
		if s.ID == id {
			return s, true
		}
	}
	return Song{}, false
}

type NewSegment struct {
	Text      string
	StartTime float64
	EndTime   float64
}

type NewSong struct {
	Title     string
	Artist    string
	AudioURL  string
	CoverURL  string
	SpotifyID string
	Segments  []NewSegment
}

// LyricistUpdate carries optional fields; nil leaves the column unchanged.
type LyricistUpdate struct {
	Name        *string
	Description *string
}

type SongUpdate struct {
	Title    string
	Artist   string
	AudioURL string
	CoverURL string
}

type SegmentUpdate struct {
	Text      string
	StartTime float64
	EndTime   float64
}
