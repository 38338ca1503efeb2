package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLayout_Rel(t *testing.T) {
	root := t.TempDir()
	l, err := NewLayout(filepath.Join(root, "public"), "media")
	if err != nil {
		t.Fatal(err)
	}

	abs := OutputPath(l.ResourceDir("r1"), "r1", 480, "ts")
	rel, err := l.Rel(abs)
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != "media/r1/r1-480p.ts" {
		t.Errorf("Rel: got %q", rel)
	}

	back, err := l.Abs(rel)
	if err != nil || back != abs {
		t.Errorf("Abs: got %q, %v; want %q", back, err, abs)
	}
}

func TestLayout_Rel_outside_root(t *testing.T) {
	root := t.TempDir()
	l, _ := NewLayout(filepath.Join(root, "public"), "media")

	for _, p := range []string{filepath.Join(root, "elsewhere", "x.ts"), l.StaticRoot} {
		if _, err := l.Rel(p); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Rel(%q): expected ErrOutsideRoot, got %v", p, err)
		}
	}
}

func TestLayout_Abs_rejects_traversal(t *testing.T) {
	l, _ := NewLayout(t.TempDir(), "media")
	for _, rel := range []string{"", "../etc/passwd", "/etc/passwd", "media/../../x"} {
		if _, err := l.Abs(rel); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Abs(%q): expected ErrOutsideRoot, got %v", rel, err)
		}
	}
}

func TestOutputPath_preview(t *testing.T) {
	got := OutputPath("/out", "r1", PreviewQuality, "jpg")
	if got != filepath.Join("/out", "r1-preview.jpg") {
		t.Errorf("OutputPath preview: got %q", got)
	}
}

func TestLayout_RemoveFiles(t *testing.T) {
	l, _ := NewLayout(t.TempDir(), "media")
	dir := l.ResourceDir("r1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var rs []Rendition
	for _, q := range []int{240, 480} {
		p := OutputPath(dir, "r1", q, "ts")
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		rel, _ := l.Rel(p)
		rs = append(rs, Rendition{ResourceID: "r1", Quality: q, FilePath: rel})
	}
	// A rendition whose file is already gone is not an error.
	rs = append(rs, Rendition{ResourceID: "r1", Quality: 720, FilePath: "media/r1/r1-720p.ts"})

	if err := l.RemoveFiles("r1", rs); err != nil {
		t.Fatalf("RemoveFiles: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected resource dir removed, stat err = %v", err)
	}
}
