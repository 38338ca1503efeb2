package transcode

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFprobe_Duration(t *testing.T) {
	script := writeScript(t, `if printf "%s" "$*" | grep -q "show_format"; then
  echo '{"format":{"filename":"in.mp4","duration":"30.000000"}}'
  exit 0
fi
exit 1
`)
	d, err := NewFFprobe(script).Duration(context.Background(), "/in.mp4")
	require.NoError(t, err)
	assert.Equal(t, 30.0, d)
}

func TestFFprobe_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"exit status", "echo 'no such file' >&2\nexit 1\n"},
		{"not json", "echo nope\n"},
		{"no duration", "echo '{\"format\":{}}'\n"},
		{"zero duration", "echo '{\"format\":{\"duration\":\"0\"}}'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFFprobe(writeScript(t, tt.script)).Duration(context.Background(), "/in.mp4")
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrSpawn)
		})
	}
}

func TestFFprobe_MissingBinary(t *testing.T) {
	_, err := NewFFprobe(filepath.Join(t.TempDir(), "no-ffprobe")).Duration(context.Background(), "/in.mp4")
	assert.ErrorIs(t, err, ErrSpawn)
}
