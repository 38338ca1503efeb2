package transcode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tier720 = media.Tier{Quality: 720, Width: 1280, Height: 720, VideoBitrate: 2_500_000}

func TestFFmpegEncoder_Args(t *testing.T) {
	e := NewFFmpegEncoder("", logger.Discard())
	args := e.Args("/in/source.mp4", Options{Tier: tier720, OutputPath: "/out/r1-720p.ts"})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /in/source.mp4",
		"-c:v libx264",
		"-vf scale=1280:720",
		"-b:v 2500000",
		"-c:a aac",
		"-b:a 128k",
		"-f mpegts -muxdelay 0 -muxpreload 0 -avoid_negative_ts make_zero",
	} {
		assert.Contains(t, joined, want)
	}
	assert.Equal(t, "/out/r1-720p.ts", args[len(args)-1])
}

func TestFFmpegEncoder_PreviewArgs(t *testing.T) {
	e := NewFFmpegEncoder("", logger.Discard())
	args := e.Args("/in/source.mp4", Options{Tier: tier720, OutputPath: "/out/r1-preview.jpg", Preview: true})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-frames:v 1")
	assert.Contains(t, joined, "-f image2")
	assert.NotContains(t, joined, "libx264")
	assert.Equal(t, "/out/r1-preview.jpg", args[len(args)-1])
}

func TestFFmpegEncoder_MissingBinaryIsSpawnError(t *testing.T) {
	e := NewFFmpegEncoder(filepath.Join(t.TempDir(), "no-ffmpeg"), logger.Discard())
	_, err := e.Encode(context.Background(), "/in.mp4", Options{Tier: tier720, OutputPath: filepath.Join(t.TempDir(), "o.ts")})
	assert.ErrorIs(t, err, ErrSpawn)
}

// writeScript installs a fake binary for the tests below.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a unix shell")
	}
	path := filepath.Join(t.TempDir(), "fake")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestFFmpegEncoder_Encode(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{
			name:   "writes output",
			script: "for last; do :; done\necho ts > \"$last\"\n",
		},
		{
			name:    "non-zero exit carries stderr tail",
			script:  "echo 'Invalid data found when processing input' >&2\nexit 1\n",
			wantErr: "Invalid data found",
		},
		{
			name:    "exit zero without output",
			script:  "exit 0\n",
			wantErr: "no output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewFFmpegEncoder(writeScript(t, tt.script), logger.Discard())
			out := filepath.Join(t.TempDir(), "r1-720p.ts")

			got, err := e.Encode(context.Background(), "/in.mp4", Options{Tier: tier720, OutputPath: out})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrSpawn)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, out, got)
			assert.FileExists(t, out)
		})
	}
}

func TestFFmpegEncoder_CancelKillsProcessGroup(t *testing.T) {
	// The shell forks sleep as a child; only a group kill stops both.
	e := NewFFmpegEncoder(writeScript(t, "sleep 30\n"), logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Encode(ctx, "/in.mp4", Options{Tier: tier720, OutputPath: filepath.Join(t.TempDir(), "o.ts")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	b := &tailBuffer{max: 8}
	_, _ = b.Write([]byte("0123456789"))
	_, _ = b.Write([]byte("ab"))
	assert.Equal(t, "456789ab", b.String())
}
