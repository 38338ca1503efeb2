// Package media holds the shared data model for transcoded ad clips: source
// resources, their renditions, the quality ladder, and the on-disk layout under
// the public static root.
package media

import "time"

// PreviewQuality marks a rendition that is a still preview rather than playable video.
// Manifests only include renditions with Quality >= 0.
const PreviewQuality = -1

// Resource is an accepted source asset. Duration is authoritative for manifest timing.
type Resource struct {
	ID        string    `json:"id"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// Rendition is one transcoded output of a resource.
// FilePath is relative to the static root and never absolute.
type Rendition struct {
	ResourceID string `json:"resource_id"`
	Quality    int    `json:"quality"`
	FilePath   string `json:"filepath"`
	FileSize   int64  `json:"filesize"`
}

// IsPreview reports whether r is a non-playback preview artifact.
func (r Rendition) IsPreview() bool {
	return r.Quality < 0
}
