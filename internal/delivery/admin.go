package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"embed-delivery/internal/access"
	"embed-delivery/internal/media"
	"embed-delivery/internal/transcode"

	"github.com/go-chi/chi/v5"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a single source upload.
const DefaultMaxUploadBytes = 2 << 30

// Submitter queues transcode jobs. *transcode.Pool implements it.
type Submitter interface {
	Submit(job transcode.Job) error
}

// AdminHandler exposes the operator endpoints: upload, embed token, delete,
// and policy writes.
type AdminHandler struct {
	svc       *Service
	jobs      Submitter
	policies  access.PolicyWriter
	uploadDir string
	maxUpload int64
	log       *slog.Logger
}

// NewAdminHandler returns an AdminHandler. policies may be nil, in which case
// policy writes answer 501.
func NewAdminHandler(svc *Service, jobs Submitter, policies access.PolicyWriter, uploadDir string, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:       svc,
		jobs:      jobs,
		policies:  policies,
		uploadDir: uploadDir,
		maxUpload: DefaultMaxUploadBytes,
		log:       log,
	}
}

// Routes mounts the admin endpoints under /admin behind bearer auth.
func (h *AdminHandler) Routes(r chi.Router, token string) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Post("/resources", h.CreateResource)
		r.Get("/resources/{id}/embed", h.GetEmbed)
		r.Delete("/resources/{id}", h.DeleteResource)
		r.Put("/policies/{domain}", h.PutPolicy)
	})
}

type createResourceResponse struct {
	ResourceID string `json:"resource_id"`
	JobID      string `json:"job_id"`
	EmbedToken string `json:"embed_token"`
}

// CreateResource handles POST /admin/resources with a multipart "file" field.
// The upload is written atomically and queued; the response is 202.
func (h *AdminHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.log.Debug("invalid upload", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer file.Close()

	resourceID := uuid.NewString()
	src := filepath.Join(h.uploadDir, resourceID+sourceExt(header))
	if err := saveUpload(src, file); err != nil {
		h.log.Error("save upload failed", slog.String("resource_id", resourceID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	job := transcode.NewJob(resourceID, src)
	if err := h.jobs.Submit(job); err != nil {
		_ = os.Remove(src)
		status := http.StatusInternalServerError
		if errors.Is(err, transcode.ErrQueueFull) || errors.Is(err, transcode.ErrPoolStopped) {
			status = http.StatusServiceUnavailable
		}
		h.log.Warn("transcode job rejected", slog.String("resource_id", resourceID), slog.String("error", err.Error()))
		w.WriteHeader(status)
		return
	}

	token, err := h.svc.codec.Encode(resourceID)
	if err != nil {
		h.log.Error("encode embed token failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("transcode job queued",
		slog.String("resource_id", resourceID),
		slog.String("job_id", job.ID),
		slog.Int64("bytes", header.Size))
	writeJSON(w, http.StatusAccepted, createResourceResponse{
		ResourceID: resourceID,
		JobID:      job.ID,
		EmbedToken: token,
	})
}

// GetEmbed handles GET /admin/resources/{id}/embed.
func (h *AdminHandler) GetEmbed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token, err := h.svc.EmbedToken(r.Context(), id)
	if err != nil {
		h.writeError(w, "embed token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"embed_token": token})
}

// DeleteResource handles DELETE /admin/resources/{id}.
func (h *AdminHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteResource(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "delete resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type policyRequest struct {
	Disposition string `json:"disposition"`
}

// PutPolicy handles PUT /admin/policies/{domain}. Body: {"disposition": "deny"}.
func (h *AdminHandler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	if h.policies == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	domain := access.ExtractDomain("https://"+chi.URLParam(r, "domain")+"/", "")
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || domain == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p, err := h.policies.UpsertPolicy(r.Context(), access.Policy{
		Domain:      domain,
		Disposition: access.ParseDisposition(req.Disposition),
	})
	if err != nil {
		h.writeError(w, "upsert policy", err)
		return
	}
	h.log.Info("access policy updated",
		slog.String("domain", p.Domain),
		slog.String("record_id", p.RecordID),
		slog.String("disposition", string(p.Disposition)))
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, media.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, access.ErrReadOnly):
		w.WriteHeader(http.StatusNotImplemented)
	default:
		h.log.Error(op+" failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// sourceExt keeps a short, plain extension from the client's filename so
// ffprobe can pick a demuxer. Anything else is dropped.
func sourceExt(h *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(h.Filename))
	if !safeExt.MatchString(ext) {
		return ""
	}
	return ext
}

func saveUpload(path string, r io.Reader) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending upload: %w", err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, r); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
