package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultKillGrace = 5 * time.Second
	stderrTailBytes  = 4096
)

// FFmpegEncoder runs the ffmpeg binary once per encode.
type FFmpegEncoder struct {
	path      string
	killGrace time.Duration
	log       *slog.Logger
}

var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder returns an encoder for the binary at path ("ffmpeg" if empty,
// resolved through PATH).
func NewFFmpegEncoder(path string, log *slog.Logger) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegEncoder{path: path, killGrace: defaultKillGrace, log: log}
}

// Args returns the ffmpeg argument list for one encode.
func (e *FFmpegEncoder) Args(input string, opts Options) []string {
	t := opts.Tier
	scale := fmt.Sprintf("scale=%d:%d", t.Width, t.Height)

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", input}
	if opts.Preview {
		return append(args,
			"-frames:v", "1",
			"-vf", scale,
			"-q:v", "3",
			"-f", "image2",
			opts.OutputPath,
		)
	}

	audio := opts.AudioBitrate
	if audio == "" {
		audio = DefaultAudioBitrate
	}
	return append(args,
		"-c:v", "libx264",
		"-vf", scale,
		"-b:v", strconv.Itoa(t.VideoBitrate),
		"-c:a", "aac",
		"-b:a", audio,
		// Zero mux delay and shifted timestamps keep every rendition starting at
		// PTS 0, so switching between them does not drift.
		"-f", "mpegts",
		"-muxdelay", "0",
		"-muxpreload", "0",
		"-avoid_negative_ts", "make_zero",
		opts.OutputPath,
	)
}

// Encode runs ffmpeg in its own process group. Cancelling ctx kills the whole
// group. Non-zero exit and a missing output file are reported with the tail
// of stderr.
func (e *FFmpegEncoder) Encode(ctx context.Context, input string, opts Options) (string, error) {
	args := e.Args(input, opts)

	cmd := exec.CommandContext(ctx, e.path, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = e.killGrace

	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return "", fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
	}
	if err != nil {
		return "", fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())
	}

	if _, err := os.Stat(opts.OutputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("ffmpeg produced no output: %s", stderr.String())
		}
		return "", err
	}

	e.log.Debug("ffmpeg finished",
		slog.String("tier", opts.Tier.Name()),
		slog.Bool("preview", opts.Preview),
		slog.Duration("elapsed", time.Since(start)))
	return opts.OutputPath, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
