package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// Sink receives renditions as soon as each tier completes.
type Sink interface {
	CreateRendition(ctx context.Context, r media.Rendition) error
}

// Config controls how a source is fanned out over the ladder.
type Config struct {
	Ladder media.Ladder
	Layout media.Layout
	// Parallelism is the number of tiers encoded at once. Values below 1 mean 1.
	Parallelism int
	// TierTimeout bounds one tier encode. Zero means no limit.
	TierTimeout  time.Duration
	AudioBitrate string
}

// TierResult is the outcome of one ladder tier.
type TierResult struct {
	Tier      media.Tier
	Rendition media.Rendition
	Err       error
	Skipped   bool
}

// Orchestrator encodes a source at every ladder tier and records what succeeds.
type Orchestrator struct {
	encoder Encoder
	sink    Sink
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewOrchestrator returns an Orchestrator. m may be nil.
func NewOrchestrator(enc Encoder, sink Sink, cfg Config, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = DefaultAudioBitrate
	}
	return &Orchestrator{encoder: enc, sink: sink, cfg: cfg, log: log, metrics: m}
}

// Transcode encodes sourcePath at every tier into outputDir and writes each
// successful rendition to the sink as it completes. The returned renditions
// are ordered by tier.
//
// Tier failures are logged and skipped, so a partial ladder is a success. An
// error is returned only when the job cannot continue: outputDir cannot be
// created, the encoder cannot be spawned, or the sink fails. On cancellation
// no further tiers start, finished outputs are kept, and the renditions
// recorded so far are returned with ctx.Err().
func (o *Orchestrator) Transcode(ctx context.Context, sourcePath, outputDir, resourceID string) ([]media.Rendition, error) {
	if _, err := o.cfg.Layout.Rel(outputDir); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	results := make([]TierResult, len(o.cfg.Ladder))
	for i, tier := range o.cfg.Ladder {
		results[i] = TierResult{Tier: tier, Skipped: true}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, tier := range o.cfg.Ladder {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rend, err := o.encodeTier(gctx, sourcePath, outputDir, resourceID, tier)
			results[i] = TierResult{Tier: tier, Rendition: rend, Err: err}
			if isFatal(err) {
				return err
			}
			return nil
		})
	}
	fatal := g.Wait()

	out := o.fold(resourceID, results)
	if fatal != nil {
		return out, fatal
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// fold collects successful tiers in ladder order and accounts for the rest.
func (o *Orchestrator) fold(resourceID string, results []TierResult) []media.Rendition {
	out := make([]media.Rendition, 0, len(results))
	for _, r := range results {
		quality := strconv.Itoa(r.Tier.Quality)
		var failure *EncodeFailure
		switch {
		case r.Skipped:
			o.metrics.ObserveTier(quality, "skipped")
		case r.Err == nil:
			o.metrics.ObserveTier(quality, "ok")
			out = append(out, r.Rendition)
		case errors.As(r.Err, &failure):
			o.metrics.ObserveTier(quality, "failed")
			o.log.Warn("tier encode failed, skipping",
				slog.String("resource_id", resourceID),
				slog.String("tier", r.Tier.Name()),
				slog.String("error", failure.Err.Error()))
		default:
			o.metrics.ObserveTier(quality, "aborted")
		}
	}
	return out
}

func (o *Orchestrator) encodeTier(ctx context.Context, src, dir, resourceID string, tier media.Tier) (media.Rendition, error) {
	tctx := ctx
	if o.cfg.TierTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.cfg.TierTimeout)
		defer cancel()
	}

	out := media.OutputPath(dir, resourceID, tier.Quality, "ts")
	path, err := o.encoder.Encode(tctx, src, Options{
		Tier:         tier,
		OutputPath:   out,
		AudioBitrate: o.cfg.AudioBitrate,
	})
	if err != nil {
		if errors.Is(err, ErrSpawn) {
			return media.Rendition{}, err
		}
		if ctx.Err() != nil {
			return media.Rendition{}, ctx.Err()
		}
		return media.Rendition{}, &EncodeFailure{Quality: tier.Quality, Err: err}
	}
	return o.record(ctx, resourceID, tier.Quality, path)
}

// record stats a finished output and writes it to the sink. The write is
// detached from cancellation so a completed tier is never lost.
func (o *Orchestrator) record(ctx context.Context, resourceID string, quality int, path string) (media.Rendition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return media.Rendition{}, &EncodeFailure{Quality: quality, Err: fmt.Errorf("stat output: %w", err)}
	}
	rel, err := o.cfg.Layout.Rel(path)
	if err != nil {
		return media.Rendition{}, &EncodeFailure{Quality: quality, Err: err}
	}

	rend := media.Rendition{
		ResourceID: resourceID,
		Quality:    quality,
		FilePath:   rel,
		FileSize:   info.Size(),
	}
	if err := o.sink.CreateRendition(context.WithoutCancel(ctx), rend); err != nil {
		return media.Rendition{}, fmt.Errorf("record rendition %d: %w", quality, err)
	}
	return rend, nil
}

// Preview encodes a single still at the top tier's resolution and records it
// with media.PreviewQuality.
func (o *Orchestrator) Preview(ctx context.Context, sourcePath, outputDir, resourceID string) (media.Rendition, error) {
	if len(o.cfg.Ladder) == 0 {
		return media.Rendition{}, errors.New("preview: empty ladder")
	}
	tier := o.cfg.Ladder[len(o.cfg.Ladder)-1]
	out := media.OutputPath(outputDir, resourceID, media.PreviewQuality, "jpg")

	path, err := o.encoder.Encode(ctx, sourcePath, Options{Tier: tier, OutputPath: out, Preview: true})
	if err != nil {
		return media.Rendition{}, fmt.Errorf("preview: %w", err)
	}
	return o.record(ctx, resourceID, media.PreviewQuality, path)
}

func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var failure *EncodeFailure
	if errors.As(err, &failure) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
