package delivery

import (
	"strconv"
	"strings"
	"testing"

	"embed-delivery/internal/media"

	"github.com/google/go-cmp/cmp"
)

func qualityURI(r media.Rendition) string {
	return "/segment/tok/" + strconv.Itoa(r.Quality)
}

func rends(qualities ...int) []media.Rendition {
	out := make([]media.Rendition, 0, len(qualities))
	for _, q := range qualities {
		out = append(out, media.Rendition{ResourceID: "r1", Quality: q})
	}
	return out
}

func TestBuildVODPlaylist_three_renditions(t *testing.T) {
	got := BuildVODPlaylist(10, rends(240, 480, 720), qualityURI)
	want := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD

#EXTINF:3.333333,
/segment/tok/240
#EXTINF:3.333333,
/segment/tok/480
#EXTINF:3.333333,
/segment/tok/720
#EXT-X-ENDLIST
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("playlist mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildVODPlaylist_even_split(t *testing.T) {
	out := BuildVODPlaylist(30, rends(240, 480), qualityURI)
	if strings.Count(out, "#EXTINF:15.000000,\n") != 2 {
		t.Errorf("expected two 15.000000 entries: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:15\n") {
		t.Errorf("expected TARGETDURATION 15: %s", out)
	}
}

func TestBuildVODPlaylist_target_duration_ceiling(t *testing.T) {
	out := BuildVODPlaylist(2.2, rends(240, 480), qualityURI)
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:2\n") {
		t.Errorf("expected TARGETDURATION 2 (ceil 1.1): %s", out)
	}
	if !strings.Contains(out, "#EXTINF:1.100000,") {
		t.Errorf("expected EXTINF 1.100000: %s", out)
	}
}

func TestBuildVODPlaylist_empty(t *testing.T) {
	out := BuildVODPlaylist(30, nil, qualityURI)
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:1\n") {
		t.Errorf("expected target duration 1 for empty: %s", out)
	}
	if strings.Contains(out, "#EXTINF") {
		t.Errorf("expected no entries: %s", out)
	}
	if !strings.HasSuffix(out, "#EXT-X-ENDLIST\n") {
		t.Errorf("expected ENDLIST terminator: %s", out)
	}
}

func TestBuildVODPlaylist_deterministic(t *testing.T) {
	a := BuildVODPlaylist(31.7, rends(240, 480, 720, 1080), qualityURI)
	b := BuildVODPlaylist(31.7, rends(240, 480, 720, 1080), qualityURI)
	if a != b {
		t.Errorf("expected byte-identical output:\n%s", cmp.Diff(a, b))
	}
}
