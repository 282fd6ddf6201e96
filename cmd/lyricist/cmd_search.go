package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ChuckD30/lyricist/internal/catalog"
	"github.com/ChuckD30/lyricist/internal/features/shared"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the Spotify catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	spotify := cfg.GetSpotifyConfig()
	client := catalog.NewClient(spotify.ClientID, spotify.ClientSecret, nil, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	tracks, err := client.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	renderTracks(tracks)
	return nil
}

func renderTracks(tracks []catalog.Track) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Artist", "Length", "Spotify ID", "Preview"})

	for n, track := range tracks {
		length := ""
		if track.DurationMS > 0 {
			length = shared.FormatSeconds(float64(track.DurationMS) / 1000)
		}
		preview := "no"
		if track.PreviewURL != "" {
			preview = "yes"
		}
		id := track.ID
		if track.IsPlaceholder() {
			id = "(offline)"
		}
		t.AppendRow(table.Row{n + 1, shared.Truncate(track.Name, 40), shared.Truncate(track.ArtistNames(), 30), length, id, preview})
	}
	t.AppendFooter(table.Row{"", "", "", "", "results", len(tracks)})
	t.Render()
}
