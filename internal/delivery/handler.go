package delivery

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"embed-delivery/internal/access"
	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const segmentContentType = "video/mp2t"

// Handler exposes the public embed endpoints using go-chi.
type Handler struct {
	svc     *Service
	gate    *access.Gate
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler. Metrics may be nil to disable metric recording.
func NewHandler(svc *Service, gate *access.Gate, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, gate: gate, log: log, metrics: m}
}

// Routes mounts the embed endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/manifest/{encryptedId}", h.GetManifest)
	r.Get("/segment/{encryptedId}/{quality}", h.GetSegment)
}

// GetManifest handles GET /manifest/{encryptedId}.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	token, resourceID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	m3u8, err := h.svc.BuildManifest(r.Context(), resourceID, SegmentURI(token))
	if err != nil {
		h.writeError(w, "build manifest", resourceID, err)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(m3u8))
	h.metrics.IncManifestsServed()
}

// GetSegment handles GET /segment/{encryptedId}/{quality}. Byte ranges are
// answered by http.ServeContent.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	_, resourceID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	quality, err := strconv.Atoi(chi.URLParam(r, "quality"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	_, path, err := h.svc.Segment(r.Context(), resourceID, quality)
	if err != nil {
		h.writeError(w, "find segment", resourceID, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.writeError(w, "open segment", resourceID, mapOpenError(err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeError(w, "stat segment", resourceID, err)
		return
	}

	w.Header().Set("Content-Type", segmentContentType)
	http.ServeContent(w, r, "", info.ModTime(), f)
	h.metrics.IncSegmentsServed()
}

// authorize decodes the token and runs the access gate. On failure it has
// already written the response.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (token, resourceID string, ok bool) {
	token, err := url.PathUnescape(chi.URLParam(r, "encryptedId"))
	if err == nil {
		resourceID, err = h.svc.ResolveToken(token)
	}
	if err != nil {
		h.log.Debug("embed token rejected", slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusBadRequest)
		return "", "", false
	}

	d := h.gate.CheckResource(r.Context(), resourceID, r.Header.Get("Referer"), r.Header.Get("Origin"))
	if !d.Allowed {
		h.log.Info("embed access denied",
			slog.String("domain", d.Domain),
			slog.String("record_id", d.RecordID),
			slog.String("reason", d.Reason))
		w.WriteHeader(http.StatusForbidden)
		return "", "", false
	}
	return token, resourceID, true
}

// writeError maps service errors onto bodiless status codes. Details only go
// to the log.
func (h *Handler) writeError(w http.ResponseWriter, op, resourceID string, err error) {
	switch {
	case errors.Is(err, media.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, media.ErrStoreUnavailable):
		h.log.Error(op+" failed", slog.String("resource_id", resourceID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		h.log.Error(op+" failed", slog.String("resource_id", resourceID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func mapOpenError(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return media.ErrNotFound
	}
	return err
}

// SegmentURI returns the manifest URI builder for a token.
func SegmentURI(token string) func(media.Rendition) string {
	escaped := url.PathEscape(token)
	return func(r media.Rendition) string {
		return "/segment/" + escaped + "/" + strconv.Itoa(r.Quality)
	}
}
