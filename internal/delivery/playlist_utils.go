package delivery

import (
	"fmt"
	"math"
	"strings"

	"embed-delivery/internal/media"
)

const playlistContentType = "application/vnd.apple.mpegurl"

// BuildVODPlaylist renders a complete VOD playlist with one entry per
// rendition, in the order given. Each rendition is a single segment spanning
// the clip, so every entry carries duration/len(entries) and the target
// duration is its ceiling. The output depends only on the arguments.
func BuildVODPlaylist(duration float64, entries []media.Rendition, uri func(media.Rendition) string) string {
	var b strings.Builder

	perEntry := 0.0
	if len(entries) > 0 {
		perEntry = duration / float64(len(entries))
	}

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDuration(perEntry)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n\n")

	for _, e := range entries {
		b.WriteString(fmt.Sprintf("#EXTINF:%.6f,\n", perEntry))
		b.WriteString(uri(e))
		b.WriteString("\n")
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// targetDuration returns the HLS #EXT-X-TARGETDURATION value: the ceiling of
// the entry duration in seconds, at least 1.
func targetDuration(seconds float64) int {
	if seconds <= 0 {
		return 1
	}
	return int(math.Ceil(seconds))
}
