package catalog

import (
	"strings"

	"github.com/ChuckD30/lyricist/internal/lyricist"
)

type Artist struct {
	Name string `json:"name"`
}

type Image struct {
	URL string `json:"url"`
}

type Album struct {
	Images []Image `json:"images"`
}

// Track is a catalog search result.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	PreviewURL string   `json:"preview_url"`
	DurationMS int64    `json:"duration_ms"`
}

func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func (t Track) ImageURL() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// IsPlaceholder reports whether t came from the offline result set.
func (t Track) IsPlaceholder() bool {
	return strings.HasPrefix(t.ID, placeholderIDPrefix)
}

// ToSong prefills a new song from a search result. Placeholder results keep
// no Spotify ID so they play their preview locally.
func (t Track) ToSong() lyricist.NewSong {
	song := lyricist.NewSong{
		Title:     t.Name,
		Artist:    t.ArtistNames(),
		AudioURL:  t.PreviewURL,
		CoverURL:  t.ImageURL(),
		SpotifyID: t.ID,
	}
	if t.IsPlaceholder() {
		song.SpotifyID = ""
	}
	return song
}

const placeholderIDPrefix = "mock-"

const placeholderPreviewURL = "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"

// placeholderTracks is returned when no client credentials are configured.
func placeholderTracks() []Track {
	return []Track{
		{
			ID:      "mock-1",
			Name:    "Stronger (Mock)",
			Artists: []Artist{{Name: "Kanye West"}},
			Album: Album{Images: []Image{
				{URL: "https://i.scdn.co/image/ab67616d0000b27397508a4b75676336d5231f61"},
			}},
			PreviewURL: placeholderPreviewURL,
		},
	}
}
