package media

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLadder_valid(t *testing.T) {
	l := DefaultLadder()
	if err := l.Validate(); err != nil {
		t.Fatalf("default ladder invalid: %v", err)
	}
	if !l.Contains(720) || l.Contains(360) {
		t.Errorf("Contains: unexpected membership for %v", l)
	}
}

func TestLoadLadder_sorts_and_validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ladder.yaml")
	data := `tiers:
  - quality: 720
    width: 1280
    height: 720
    video_bitrate: 2500000
  - quality: 240
    width: 426
    height: 240
    video_bitrate: 400000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := LoadLadder(path)
	if err != nil {
		t.Fatalf("LoadLadder: %v", err)
	}
	if len(l) != 2 || l[0].Quality != 240 || l[1].Quality != 720 {
		t.Errorf("expected ascending [240 720], got %+v", l)
	}
	if l[1].Name() != "720p" {
		t.Errorf("Name: got %q", l[1].Name())
	}
}

func TestLadder_Validate_rejects(t *testing.T) {
	cases := map[string]Ladder{
		"empty":     {},
		"duplicate": {{Quality: 240, Width: 1, Height: 1, VideoBitrate: 1}, {Quality: 240, Width: 1, Height: 1, VideoBitrate: 1}},
		"zero":      {{Quality: 0, Width: 1, Height: 1, VideoBitrate: 1}},
		"bitrate":   {{Quality: 240, Width: 1, Height: 1}},
	}
	for name, l := range cases {
		t.Run(name, func(t *testing.T) {
			if err := l.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadLadder_missing_file(t *testing.T) {
	if _, err := LoadLadder(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
