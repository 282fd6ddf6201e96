package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuckD30/lyricist/internal/bot"
	"github.com/ChuckD30/lyricist/internal/features/library"
	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/lyricist"
	"github.com/ChuckD30/lyricist/internal/playback"
	"github.com/ChuckD30/lyricist/internal/session"
	"github.com/ChuckD30/lyricist/internal/speaker"
)

var playCmd = &cobra.Command{
	Use:   "play <lyricist-id> <song> <segment>",
	Short: "Play one segment on this machine or the Spotify device",
	Long:  "Play one lyric segment until it ends. Songs and segments are numbered from 1 in listing order.",
	Args:  cobra.ExactArgs(3),
	RunE:  runPlay,
}

var playTimeout time.Duration

func init() {
	playCmd.Flags().DurationVar(&playTimeout, "timeout", 0, "stop after this long even if the segment has not ended")
}

func runPlay(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	songN, segN, err := parseIndexes(args[1], args[2])
	if err != nil {
		return err
	}

	services := bot.NewServices(cfg, logger)
	defer services.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	l, err := services.Library.GetLyricist(ctx, args[0])
	cancel()
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("lyricist %s: %w", args[0], lyricist.ErrNotFound)
	}

	song, err := library.SongAt(l, songN)
	if err != nil {
		return err
	}
	segment, err := library.SegmentAt(song, segN)
	if err != nil {
		return err
	}

	backends := session.Backends{Remote: services.RemoteBackend(logger)}
	if !song.IsRemote() {
		out, err := speaker.Default()
		if err != nil {
			return fmt.Errorf("local audio output: %w", err)
		}
		backends.Local = services.LocalBackend(speaker.Factory(out, http.DefaultClient, cfg.GetPlayerConfig().MaxDownloadBytes), logger)
	}

	ctrl := session.NewController(backends, services.SessionOptions(), logger)
	defer ctrl.Close()

	ended := make(chan struct{})
	ctrl.OnChange(watchEnd(ended))

	if err := ctrl.Play(song, segment); err != nil {
		return err
	}
	fmt.Printf("Playing %q, segment %d [%s - %s]\n", song.Title, segN,
		shared.FormatSeconds(segment.StartTime), shared.FormatSeconds(segment.EndTime))
	if segment.Text != "" {
		fmt.Println(segment.Text)
	}

	return waitForEnd(cmd.Context(), ctrl, ended)
}

func parseIndexes(song, segment string) (int, int, error) {
	songN, err := strconv.Atoi(song)
	if err != nil || songN < 1 {
		return 0, 0, fmt.Errorf("song must be a number from 1: %q", song)
	}
	segN, err := strconv.Atoi(segment)
	if err != nil || segN < 1 {
		return 0, 0, fmt.Errorf("segment must be a number from 1: %q", segment)
	}
	return songN, segN, nil
}

// watchEnd closes ended the first time the session stops playing.
func watchEnd(ended chan<- struct{}) func(session.State) {
	var once sync.Once
	return func(st session.State) {
		if st.Playing {
			return
		}
		once.Do(func() { close(ended) })
	}
}

func waitForEnd(ctx context.Context, ctrl *session.Controller, ended <-chan struct{}) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var deadline <-chan time.Time
	if playTimeout > 0 {
		timer := time.NewTimer(playTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ended:
			st := ctrl.State()
			if st.Player.Kind == playback.KindRemote && st.Player.Device == playback.DeviceUnavailable {
				return errors.New("spotify device unavailable")
			}
			fmt.Println("Segment finished")
			return nil
		case <-sigCh:
			ctrl.Reset()
			fmt.Println("Stopped")
			return nil
		case <-deadline:
			ctrl.Reset()
			fmt.Println("Timed out")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := ctrl.State()
			logger.Debug().
				Float64("position", st.Player.Position).
				Str("device", string(st.Player.Device)).
				Msg("playing")
		}
	}
}
