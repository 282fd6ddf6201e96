package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Decoder turns an audio URL into an ogg/opus stream starting at offset
// seconds with the given linear volume applied.
type Decoder func(ctx context.Context, url string, offset, volume float64) (io.ReadCloser, error)

// FFmpeg returns a Decoder backed by an ffmpeg child process. The process
// dies with ctx.
func FFmpeg(path string, logger zerolog.Logger) Decoder {
	if path == "" {
		path = "ffmpeg"
	}
	log := logger.With().Str("decoder", "ffmpeg").Logger()

	return func(ctx context.Context, url string, offset, volume float64) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, path, ffmpegArgs(url, offset, volume)...)

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create ffmpeg stderr pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
		}

		go func() {
			reader := bufio.NewReader(stderr)
			for {
				line, err := reader.ReadString('\n')
				if line = strings.TrimSpace(line); line != "" {
					log.Debug().Str("url", url).Msg(line)
				}
				if err != nil {
					return
				}
			}
		}()

		return &process{ReadCloser: stdout, cmd: cmd}, nil
	}
}

func ffmpegArgs(url string, offset, volume float64) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset))
	}
	return append(args,
		"-i", url,
		"-af", fmt.Sprintf("volume=%.2f", volume),
		"-c:a", "libopus",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "96k",
		"-vbr", "on",
		"-frame_duration", "20",
		"-application", "audio",
		"-f", "ogg",
		"-loglevel", "warning",
		"pipe:1",
	)
}

type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	_ = p.ReadCloser.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}
