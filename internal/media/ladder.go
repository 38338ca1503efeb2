package media

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tier is one rung of the quality ladder.
type Tier struct {
	Quality      int `yaml:"quality"`
	Width        int `yaml:"width"`
	Height       int `yaml:"height"`
	VideoBitrate int `yaml:"video_bitrate"` // bits per second
}

// Name returns the conventional label for the tier, e.g. "720p".
func (t Tier) Name() string {
	return fmt.Sprintf("%dp", t.Quality)
}

// Ladder is the ordered set of encodes produced for every resource.
type Ladder []Tier

// DefaultLadder is used when no ladder file is configured.
func DefaultLadder() Ladder {
	return Ladder{
		{Quality: 240, Width: 426, Height: 240, VideoBitrate: 400_000},
		{Quality: 480, Width: 854, Height: 480, VideoBitrate: 1_000_000},
		{Quality: 720, Width: 1280, Height: 720, VideoBitrate: 2_500_000},
		{Quality: 1080, Width: 1920, Height: 1080, VideoBitrate: 5_000_000},
	}
}

type ladderFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadLadder reads a YAML ladder of the form:
//
//	tiers:
//	  - quality: 240
//	    width: 426
//	    height: 240
//	    video_bitrate: 400000
//
// The result is sorted ascending by quality and validated.
func LoadLadder(path string) (Ladder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder: %w", err)
	}
	var f ladderFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ladder: %w", err)
	}
	l := Ladder(f.Tiers)
	l.sort()
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks that the ladder is non-empty, ascending and free of duplicates,
// and that every tier has positive dimensions and bitrate.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("ladder: no tiers")
	}
	for i, t := range l {
		if t.Quality <= 0 || t.Width <= 0 || t.Height <= 0 || t.VideoBitrate <= 0 {
			return fmt.Errorf("ladder: tier %d has non-positive fields", t.Quality)
		}
		if i > 0 && l[i-1].Quality >= t.Quality {
			return fmt.Errorf("ladder: tiers must be strictly ascending (%d after %d)", t.Quality, l[i-1].Quality)
		}
	}
	return nil
}

// Contains reports whether quality is a rung of the ladder.
func (l Ladder) Contains(quality int) bool {
	for _, t := range l {
		if t.Quality == quality {
			return true
		}
	}
	return false
}

func (l Ladder) sort() {
	sort.SliceStable(l, func(i, j int) bool { return l[i].Quality < l[j].Quality })
}
