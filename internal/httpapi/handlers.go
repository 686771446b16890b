package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/server"
)

// multipartMemory is how much of a submission is buffered in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// Handler serves the conversion endpoints.
type Handler struct {
	submitter server.Submitter
	status    server.StatusService
	exporter  server.Exporter
	maxBytes  int64
	ping      func(ctx context.Context) error
	logger    *slog.Logger
}

// SubmitResponse is the body of an accepted submission.
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// Submit handles POST /v1/conversions.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body", err.Error())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("http.multipart.cleanup_error", "error", err)
		}
	}()

	uploads, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded files", err.Error())
		return
	}

	id, err := h.submitter.Submit(ctx, core.SubmitRequest{
		Owner:        common.OwnerIDFromContext(ctx),
		Uploads:      uploads,
		TargetFormat: r.FormValue("target_format"),
		Destination:  r.FormValue("destination"),
		Title:        r.FormValue("title"),
	})
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	w.Header().Set("Location", "/v1/conversions/"+id.String())
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:     id.String(),
		Status:    string(constants.JobStatusPending),
		StatusURL: "/v1/conversions/" + id.String(),
	})
}

// readUploads reads the files in form order. Each part is read up to one
// byte past the item limit so admission can report the oversize.
func readUploads(files []*multipart.FileHeader) ([]entity.Upload, error) {
	uploads := make([]entity.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, constants.MaxItemBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, entity.Upload{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}

// Get handles GET /v1/conversions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID", "")
		return
	}
	job, err := h.status.GetStatus(r.Context(), id, common.OwnerIDFromContext(r.Context()))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// List handles GET /v1/conversions?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer", "")
			return
		}
		limit = n
	}
	jobs, err := h.status.ListJobs(r.Context(), common.OwnerIDFromContext(r.Context()), limit)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// Export handles GET /v1/conversions/export.xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	owner := common.OwnerIDFromContext(r.Context())
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required", "")
		return
	}
	data, err := h.exporter.JobsXLSX(r.Context(), owner)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="conversions.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Warn("http.health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	code := common.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("http.request.failed", "error", err)
		writeError(w, code, "internal error", "")
		return
	}
	var appErr *common.AppError
	msg := err.Error()
	field := ""
	if errors.As(err, &appErr) {
		msg, field = appErr.Message, appErr.Field
	}
	writeError(w, code, msg, field)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
