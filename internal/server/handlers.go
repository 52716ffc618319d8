package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/PaulBabatuyi/WeShare/internal/models"
	"github.com/PaulBabatuyi/WeShare/internal/observability"
	"github.com/PaulBabatuyi/WeShare/internal/service"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

// filesField is the repeatable multipart field carrying uploads.
const filesField = "files"

// UploadService is the part of service.UploadService the handlers use.
type UploadService interface {
	Begin(ctx context.Context) *service.Upload
	GetUpload(ctx context.Context, id string) ([]models.FileRecord, error)
	OpenFile(ctx context.Context, id string, index int) (models.FileRecord, io.ReadCloser, error)
	OpenThumbnail(ctx context.Context, id string, index int) (io.ReadCloser, error)
}

type Notifier interface {
	SendLinkEmail(ctx context.Context, recipient, link string) error
}

// Observer records business outcomes; observability.MetricsCollector implements it.
type Observer interface {
	ObserveUpload(result string, files int, bytes int64)
	ObserveEmail(result string)
}

type Handlers struct {
	uploads        UploadService
	notifier       Notifier
	observer       Observer
	logger         *zap.Logger
	apiBaseURL     string
	maxUploadBytes int64
}

type HandlersConfig struct {
	Uploads        UploadService
	Notifier       Notifier
	Observer       Observer
	Logger         *zap.Logger
	APIBaseURL     string
	MaxUploadBytes int64
}

func NewHandlers(c HandlersConfig) *Handlers {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return &Handlers{
		uploads:        c.Uploads,
		notifier:       c.Notifier,
		observer:       c.Observer,
		logger:         c.Logger,
		apiBaseURL:     strings.TrimRight(c.APIBaseURL, "/"),
		maxUploadBytes: c.MaxUploadBytes,
	}
}

type nopObserver struct{}

func (nopObserver) ObserveUpload(string, int, int64) {}
func (nopObserver) ObserveEmail(string)              {}

type messageResp struct {
	Message string `json:"message"`
}

// Upload streams every "files" part into a new upload.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		h.observer.ObserveUpload(observability.ResultRejected, 0, 0)
		writeError(w, http.StatusBadRequest, "Expected a multipart form upload")
		return
	}

	upload := h.uploads.Begin(r.Context())
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			upload.Abort()
			if isMaxBytes(err) {
				h.uploadFailed(w, r, err)
				return
			}
			h.observer.ObserveUpload(observability.ResultRejected, 0, 0)
			writeError(w, http.StatusBadRequest, "Malformed multipart body")
			return
		}

		if part.FormName() != filesField {
			// Other form fields are not used. A read failure here shows
			// up again on the next NextPart call.
			io.Copy(io.Discard, part)
			part.Close()
			continue
		}

		err = upload.Add(partFilename(part), part)
		part.Close()
		if err != nil {
			upload.Abort()
			h.uploadFailed(w, r, err)
			return
		}
	}

	files, size := upload.Files(), upload.Bytes()
	res, err := upload.Commit()
	if errors.Is(err, service.ErrNoFiles) {
		h.observer.ObserveUpload(observability.ResultRejected, 0, 0)
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if err != nil {
		h.uploadFailed(w, r, err)
		return
	}

	h.observer.ObserveUpload(observability.ResultSuccess, files, size)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	if isMaxBytes(err) {
		h.observer.ObserveUpload(observability.ResultRejected, 0, 0)
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}

	h.observer.ObserveUpload(observability.ResultFailure, 0, 0)
	h.logger.Error("upload failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Upload failed")
}

func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// partFilename returns the raw filename parameter. multipart.Part.FileName
// strips directories, which would alter the stored original name.
func partFilename(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

type sendEmailReq struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

func (req *sendEmailReq) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Link, validation.Required),
	)
}

func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailReq

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notifier.SendLinkEmail(r.Context(), req.Email, req.Link); err != nil {
		h.observer.ObserveEmail(observability.ResultFailure)
		h.logger.Error("failed to send email", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	h.observer.ObserveEmail(observability.ResultSuccess)
	writeJSON(w, http.StatusOK, messageResp{Message: "Email sent successfully"})
}

type fileDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	ContentType  string `json:"contentType"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type fileListResp struct {
	Files []fileDTO `json:"files"`
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	files, err := h.uploads.GetUpload(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, err)
		return
	}

	resp := fileListResp{Files: make([]fileDTO, len(files))}
	for i, f := range files {
		index := strconv.Itoa(i)
		fileURL := h.apiBaseURL + "/files/" + id + "/" + index
		dto := fileDTO{
			ID:          index,
			Name:        f.OriginalName,
			URL:         fileURL,
			Size:        f.Size,
			ContentType: f.ContentType,
		}
		if f.FileType() == models.FileTypeImage {
			dto.ThumbnailURL = fileURL + "/thumbnail"
		}
		resp.Files[i] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	index, ok := fileIndex(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	f, rc, err := h.uploads.OpenFile(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", contentDisposition(f, index))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", zap.String("key", f.StorageKey), zap.Error(err))
	}
}

func (h *Handlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	index, ok := fileIndex(r)
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	rc, err := h.uploads.OpenThumbnail(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		h.lookupFailed(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("thumbnail download interrupted", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (h *Handlers) lookupFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Upload not found")
		return
	}
	h.logger.Error("lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to load files")
}

func fileIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	return index, err == nil && index >= 0
}

// contentDisposition offers the original name; mime encodes non-ASCII per RFC 2231.
func contentDisposition(f models.FileRecord, index int) string {
	name := f.OriginalName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		name = "file-" + strconv.Itoa(index)
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResp{Message: message})
}
