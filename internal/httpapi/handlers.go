package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"drop2print/internal/jobs"
	"drop2print/internal/storage"
	"drop2print/internal/version"
)

const (
	defaultListLimit = 25
	maxListLimit     = 500
	adminListLimit   = 10
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store *storage.Store
	Jobs  *jobs.Service

	Logger         *slog.Logger
	AdminPassword  string
	WatchPath      string
	PrinterName    string
	MaxUploadBytes int64
}

// NewRouter builds the HTTP router with routes bound to our handlers.
func NewRouter(h *Handler) http.Handler {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	r := mux.NewRouter()

	r.Use(versionHeaderMiddleware)
	r.Use(h.loggingMiddleware)

	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/admin", h.AdminPanel).Methods("GET")
	r.HandleFunc("/admin/login", h.AdminLoginForm).Methods("GET")
	r.HandleFunc("/admin/login", h.AdminLogin).Methods("POST")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id:[0-9]+}", h.GetJob).Methods("GET")
	api.HandleFunc("/stats", h.Stats).Methods("GET")
	api.HandleFunc("/upload", h.Upload).Methods("POST")

	return otelhttp.NewHandler(r, "drop2print")
}

func versionHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Add version header
		w.Header().Set("X-App-Version", version.Version)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	logger := h.Logger.With("component", "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration_ms", m.Duration.Milliseconds(),
		}
		if m.Code >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request completed", attrs...)
	})
}

// jobResponse is the wire shape of a job.
type jobResponse struct {
	ID        int64   `json:"id"`
	Filename  string  `json:"filename"`
	Copies    int     `json:"copies"`
	Status    string  `json:"status"`
	CreatedAt *string `json:"created_at"`
	PrintedAt *string `json:"printed_at"`
	Error     *string `json:"error"`
}

func serializeJob(j *storage.PrintJob) jobResponse {
	out := jobResponse{
		ID:       j.ID,
		Filename: j.Filename,
		Copies:   j.Copies,
		Status:   string(j.Status),
	}
	if !j.CreatedAt.IsZero() {
		out.CreatedAt = isoTime(j.CreatedAt)
	}
	if j.PrintedAt.Valid {
		out.PrintedAt = isoTime(j.PrintedAt.Time)
	}
	if j.Error.Valid {
		msg := j.Error.String
		out.Error = &msg
	}
	return out
}

func serializeJobs(list []*storage.PrintJob) []jobResponse {
	out := make([]jobResponse, 0, len(list))
	for _, j := range list {
		out = append(out, serializeJob(j))
	}
	return out
}

func isoTime(t time.Time) *string {
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type settingsResponse struct {
	Copies int `json:"copies"`
}

// GetSettings returns the copies-per-job setting.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	copies, err := h.Store.Copies(r.Context())
	if err != nil {
		h.Logger.Error("read settings", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Copies: copies})
}

// UpdateSettings stores the copies form field.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	copies, err := strconv.Atoi(r.PostFormValue("copies"))
	if err != nil || copies < 1 {
		writeError(w, http.StatusUnprocessableEntity, "copies must be an integer >= 1")
		return
	}
	if err := h.Store.SetCopies(r.Context(), copies); err != nil {
		h.Logger.Error("update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Copies: copies})
}

// ListJobs returns the most recent jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := h.Store.ListRecentJobs(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, serializeJobs(list))
}

// GetJob returns one job so clients can poll its status.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	j, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, serializeJob(j))
}

type statsResponse struct {
	TotalJobs int `json:"total_jobs"`
	Printed   int `json:"printed"`
	Failed    int `json:"failed"`
}

func (h *Handler) stats(r *http.Request) (statsResponse, error) {
	var (
		s   statsResponse
		err error
	)
	ctx := r.Context()
	if s.TotalJobs, err = h.Store.CountJobs(ctx); err != nil {
		return s, err
	}
	if s.Printed, err = h.Store.CountJobsByStatus(ctx, storage.StatusPrinted); err != nil {
		return s, err
	}
	s.Failed, err = h.Store.CountJobsByStatus(ctx, storage.StatusFailed)
	return s, err
}

// Stats returns job counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats(r)
	if err != nil {
		h.Logger.Error("count jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Upload accepts a multipart PDF in field "file" and prints it before
// responding. The response carries the job even when printing failed.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !allowedContentType(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed.")
		return
	}

	copies := 0
	if v := r.FormValue("copies"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, "copies must be an integer >= 1")
			return
		}
		copies = n
	}

	job, err := h.Jobs.SubmitUpload(r.Context(), header.Filename, file, copies)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrInvalidCopies), errors.Is(err, jobs.ErrInvalidRequest):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.Logger.Error("upload failed", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
		}
		return
	}
	writeJSON(w, http.StatusOK, serializeJob(job))
}

func allowedContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/pdf" || mediaType == "application/octet-stream"
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}
