// Package delivery serves manifests and segment bytes to embed players, and
// the operator endpoints that feed the transcode pool.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"embed-delivery/internal/embedid"
	"embed-delivery/internal/media"
	"embed-delivery/internal/renditions"
)

// Service builds manifests and resolves segments from stored renditions.
// It keeps no state of its own; every call reads the repository.
type Service struct {
	repo   renditions.Repository
	layout media.Layout
	ladder media.Ladder
	codec  *embedid.Codec
	log    *slog.Logger
}

// NewService returns a Service over repo. Only renditions whose quality is a
// rung of ladder are served.
func NewService(repo renditions.Repository, layout media.Layout, ladder media.Ladder, codec *embedid.Codec, log *slog.Logger) *Service {
	return &Service{repo: repo, layout: layout, ladder: ladder, codec: codec, log: log}
}

// ResolveToken turns an embed token back into a resource ID.
func (s *Service) ResolveToken(token string) (string, error) {
	return s.codec.Decode(token)
}

// EmbedToken returns a fresh token for an existing resource.
func (s *Service) EmbedToken(ctx context.Context, resourceID string) (string, error) {
	if _, err := s.repo.GetResource(ctx, resourceID); err != nil {
		return "", err
	}
	return s.codec.Encode(resourceID)
}

// BuildManifest renders the playlist for resourceID from its playable
// renditions, ascending by quality. Renditions off the current ladder or whose
// file is gone are left out. It returns media.ErrNotFound when nothing is left
// to play.
func (s *Service) BuildManifest(ctx context.Context, resourceID string, uri func(media.Rendition) string) (string, error) {
	res, err := s.repo.GetResource(ctx, resourceID)
	if err != nil {
		return "", err
	}
	rends, err := s.repo.FindRenditions(ctx, resourceID, 0)
	if err != nil {
		return "", err
	}

	playable := rends[:0:0]
	for _, r := range rends {
		if !s.ladder.Contains(r.Quality) {
			s.log.Warn("rendition not on ladder, leaving out of manifest",
				slog.String("resource_id", resourceID),
				slog.Int("quality", r.Quality))
			continue
		}
		if _, err := s.file(r); err != nil {
			s.log.Warn("rendition file missing, leaving out of manifest",
				slog.String("resource_id", resourceID),
				slog.Int("quality", r.Quality))
			continue
		}
		playable = append(playable, r)
	}
	if len(playable) == 0 {
		return "", media.ErrNotFound
	}
	return BuildVODPlaylist(res.Duration, playable, uri), nil
}

// Segment returns the rendition at quality and the absolute path of its file.
func (s *Service) Segment(ctx context.Context, resourceID string, quality int) (media.Rendition, string, error) {
	if !s.ladder.Contains(quality) {
		return media.Rendition{}, "", media.ErrNotFound
	}
	rends, err := s.repo.FindRenditions(ctx, resourceID, quality)
	if err != nil {
		return media.Rendition{}, "", err
	}
	if len(rends) == 0 || rends[0].Quality != quality {
		return media.Rendition{}, "", media.ErrNotFound
	}
	path, err := s.file(rends[0])
	if err != nil {
		return media.Rendition{}, "", err
	}
	return rends[0], path, nil
}

// DeleteResource removes every file of the resource, then its rows. Files go
// first so a failed removal leaves the rows in place for a retry.
func (s *Service) DeleteResource(ctx context.Context, resourceID string) error {
	if _, err := s.repo.GetResource(ctx, resourceID); err != nil {
		return err
	}
	rends, err := s.repo.FindRenditions(ctx, resourceID, media.PreviewQuality)
	if err != nil {
		return err
	}
	if err := s.layout.RemoveFiles(resourceID, rends); err != nil {
		return fmt.Errorf("remove files: %w", err)
	}
	n, err := s.repo.DeleteRenditions(ctx, resourceID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteResource(ctx, resourceID); err != nil {
		return err
	}
	s.log.Info("resource deleted", slog.String("resource_id", resourceID), slog.Int("renditions", n))
	return nil
}

// file resolves the on-disk path of r and checks that it is a regular file.
func (s *Service) file(r media.Rendition) (string, error) {
	path, err := s.layout.Abs(r.FilePath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", media.ErrNotFound
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", media.ErrNotFound
	}
	return path, nil
}
