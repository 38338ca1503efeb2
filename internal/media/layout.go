package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrOutsideRoot is returned when a path does not live under the static root.
var ErrOutsideRoot = errors.New("path outside static root")

// Layout describes where transcoded files live on disk. Everything under StaticRoot
// is publicly servable; stored metadata only ever holds paths relative to it.
type Layout struct {
	StaticRoot string // absolute, e.g. /srv/app/public
	MediaDir   string // relative to StaticRoot, e.g. "media"
}

// NewLayout resolves staticRoot to an absolute path.
func NewLayout(staticRoot, mediaDir string) (Layout, error) {
	abs, err := filepath.Abs(staticRoot)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve static root: %w", err)
	}
	if mediaDir == "" {
		mediaDir = "media"
	}
	return Layout{StaticRoot: filepath.Clean(abs), MediaDir: filepath.Clean(mediaDir)}, nil
}

// ResourceDir returns the absolute output directory for a resource.
func (l Layout) ResourceDir(resourceID string) string {
	return filepath.Join(l.StaticRoot, l.MediaDir, resourceID)
}

// OutputPath returns {dir}/{resourceID}-{quality}p.{ext}. Preview artifacts use
// the "preview" suffix instead of a quality label.
func OutputPath(dir, resourceID string, quality int, ext string) string {
	if quality == PreviewQuality {
		return filepath.Join(dir, fmt.Sprintf("%s-preview.%s", resourceID, ext))
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%dp.%s", resourceID, quality, ext))
}

// Rel strips the absolute prefix up to and including the static root, returning a
// slash-separated path suitable for persistence.
func (l Layout) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.StaticRoot, filepath.Clean(abs))
	if err != nil {
		return "", ErrOutsideRoot
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return filepath.ToSlash(rel), nil
}

// Abs resolves a stored relative path back onto disk, refusing anything that
// would escape the static root.
func (l Layout) Abs(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrOutsideRoot
	}
	p := filepath.Join(l.StaticRoot, filepath.FromSlash(rel))
	if _, err := l.Rel(p); err != nil {
		return "", err
	}
	return p, nil
}

// RemoveFiles deletes the files behind renditions and then the resource directory
// if it is empty. Missing files are not an error.
func (l Layout) RemoveFiles(resourceID string, renditions []Rendition) error {
	var errs []error
	for _, r := range renditions {
		p, err := l.Abs(r.FilePath)
		if err != nil {
			errs = append(errs, fmt.Errorf("rendition %d: %w", r.Quality, err))
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("rendition %d: %w", r.Quality, err))
		}
	}
	// Only an empty directory is removed; anything left over is kept for inspection.
	if err := os.Remove(l.ResourceDir(resourceID)); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(err) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
