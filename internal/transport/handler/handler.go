package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/config"
	"github.com/YashMayekar/Resizer/internal/entities"
	"github.com/YashMayekar/Resizer/internal/media"
	"github.com/YashMayekar/Resizer/internal/registry"
)

// UseCase is what the HTTP surface needs from the orchestration layer.
type UseCase interface {
	StartResize(ctx context.Context, file multipart.File, filename string, params ResizeParams) (string, error)
	Progress(ctx context.Context, id string) (entities.JobView, error)
	Result(ctx context.Context, id string) (entities.Job, error)
	Cancel(ctx context.Context, id string) error
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
	log       zerolog.Logger
}

func New(useCase UseCase, cfg *config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
		log:       log,
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bannerResponse{
		Message:  "media resizer is up",
		Datetime: time.Now().Format("2006-01-02 15:04:05"),
	})
}

// Resize accepts the upload, registers a job and returns its id. Processing
// happens off the request path; clients poll the progress endpoint.
func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxRequestBodyMB<<20)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxMultipartMemoryMB << 20); err != nil {
		writeMultipartError(w, err)
		return
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, `missing file: form field key should be "file"`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	percentage, err := strconv.Atoi(r.FormValue("percentage"))
	if err != nil {
		writeJSONError(w, "percentage must be an integer", http.StatusBadRequest)
		return
	}
	upscale, err := strconv.ParseBool(r.FormValue("upscale"))
	if err != nil {
		writeJSONError(w, "upscale must be a boolean", http.StatusBadRequest)
		return
	}

	params := ResizeParams{Percentage: percentage, Upscale: upscale}
	if err := h.validator.Struct(params); err != nil {
		writeJSON(w, http.StatusBadRequest, validationErrorsToMap(err))
		return
	}

	id, err := h.useCase.StartResize(r.Context(), file, fh.Filename, params)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedFormat) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("file", fh.Filename).Msg("could not start resize job")
		writeJSONError(w, "could not start resize job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, resizeResponse{
		TaskID: id,
		Status: string(entities.StatusProcessing),
	})
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")

	view, err := h.useCase.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeJSONError(w, "task ID not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Result streams the finished artifact with a media type derived from the
// output extension. The file handle is opened before anything is written so
// a reap that lands mid-download cannot truncate the response.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")

	job, err := h.useCase.Result(r.Context(), id)
	if err != nil {
		h.writeResultError(w, err)
		return
	}

	f, err := os.Open(job.ResultPath)
	if err != nil {
		writeJSONError(w, "result file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", resultContentType(job.ResultPath))
	if _, err := io.Copy(w, f); err != nil {
		h.log.Warn().Err(err).Str("task_id", id).Msg("result download aborted")
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")

	if err := h.useCase.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeJSONError(w, "task ID not found", http.StatusNotFound)
		case errors.Is(err, entities.ErrAlreadyFinished):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, resizeResponse{
		TaskID: id,
		Status: "canceling",
	})
}

func (h *Handler) writeResultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeJSONError(w, "result file not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrNotCompleted):
		writeJSONError(w, "task not completed yet", http.StatusBadRequest)
	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
