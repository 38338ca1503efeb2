package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// Prober reads metadata from a source file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe implements Prober with the ffprobe binary.
type FFprobe struct {
	path string
}

var _ Prober = (*FFprobe)(nil)

// NewFFprobe returns a prober for the binary at path ("ffprobe" if empty).
func NewFFprobe(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration in seconds.
func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.path, "-v", "error", "-show_format", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%w: %v", ErrSpawn, err)
		}
		return 0, fmt.Errorf("ffprobe: %w: %s", err, exitErr.Stderr)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}
