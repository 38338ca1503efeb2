// Package transcode turns an accepted source file into the rendition ladder.
// Encoding is delegated to an Encoder (ffmpeg in production); the Orchestrator
// folds tier results into stored renditions and the Pool runs jobs in the
// background.
package transcode

import (
	"context"
	"errors"
	"fmt"

	"embed-delivery/internal/media"
)

// DefaultAudioBitrate is used when Options.AudioBitrate is empty.
const DefaultAudioBitrate = "128k"

// ErrSpawn is returned when the encoder process cannot be started at all.
// It aborts the whole job rather than a single tier.
var ErrSpawn = errors.New("encoder could not be started")

// Options describe one encode.
type Options struct {
	Tier         media.Tier
	OutputPath   string
	AudioBitrate string
	// Preview emits a single still frame instead of a playable stream.
	Preview bool
}

// Encoder produces one output file from input.
type Encoder interface {
	Encode(ctx context.Context, input string, opts Options) (outputPath string, err error)
}

// EncodeFailure is a non-fatal failure of a single ladder tier.
type EncodeFailure struct {
	Quality int
	Err     error
}

func (e *EncodeFailure) Error() string {
	return fmt.Sprintf("encode %dp: %v", e.Quality, e.Err)
}

func (e *EncodeFailure) Unwrap() error {
	return e.Err
}
