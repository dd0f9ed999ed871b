package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/leads"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/search"
)

const (
	defaultMaxUploadSize = 25 << 20
	defaultLeadRate      = 5
	maxSectionBytes      = 1 << 20

	configField = "config"
)

type HTTPOptions struct {
	CORSOrigin        string
	MaxUploadSize     int64
	LeadRatePerMinute int
}

type HTTPServer struct {
	service       *Service
	corsOrigin    string
	maxUploadSize int64
	leadRate      int
}

func NewHTTPServer(service *Service, opts HTTPOptions) *HTTPServer {
	s := &HTTPServer{
		service:       service,
		corsOrigin:    opts.CORSOrigin,
		maxUploadSize: opts.MaxUploadSize,
		leadRate:      opts.LeadRatePerMinute,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadSize <= 0 {
		s.maxUploadSize = defaultMaxUploadSize
	}
	if s.leadRate <= 0 {
		s.leadRate = defaultLeadRate
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Head("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/config", s.handleGetConfig)
		r.Get("/search", s.handleSearch)
		r.With(s.leadLimiter()).Post("/leads", s.handleLead)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/config", s.handleSaveConfig)
			r.Post("/sessions", s.handleCreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDiscardSession)
				r.Put("/fields/{key}", s.handleSetField)
				r.Put("/fields/{key}/enabled", s.handleSetEnabled)
				r.Put("/sections/{key}", s.handleSetSection)
				r.Post("/hero/gallery", s.handleHeroGallery)
				r.Post("/hero/uploads", s.handleAddHeroUpload)
				r.Delete("/hero/uploads/{index}", s.handleRemoveHeroUpload)
				r.Post("/services/{index}/gallery", s.handleServiceGallery)
				r.Post("/files/{field}", s.handleAttachFile)
				r.Post("/save", s.handleSaveSession)
			})
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for _, check := range s.service.Ready(ctx) {
		if check.Err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[check.Name] = map[string]any{
				"status": "error",
				"error":  check.Err.Error(),
			}
			continue
		}
		checks[check.Name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.Configuration(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSaveConfig is the write interface. It answers {"ok":true} or a
// single error.
func (s *HTTPServer) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := formUploads(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return
	}
	raw := []byte(r.FormValue("config"))
	if len(raw) == 0 && len(r.MultipartForm.File[configField]) > 0 {
		if raw, err = readFormFile(r, configField); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
			return
		}
	}
	if err := s.service.SaveConfiguration(r.Context(), raw, uploads); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleLead(w http.ResponseWriter, r *http.Request) {
	var lead leads.Lead
	if err := decodeBody(r, &lead); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	result, err := s.service.SubmitLead(r.Context(), lead)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{Text: strings.TrimSpace(query.Get("q"))}
	switch t := search.ResultType(query.Get("type")); t {
	case "", search.ResultService, search.ResultArea:
		q.FilterType = t
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "type must be service or area", nil)
		return
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer", nil)
			return
		}
		q.Limit = limit
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) leadLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.leadRate,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later", nil)
		}),
	)
}

// fail maps err to a response. Server-side failures are logged with their
// cause; the client only sees the mapped message.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logger := sitelog.FromContext(r.Context(), "http")
		logger.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("upload exceeds %d MB", s.maxUploadSize>>20)
		}
		return fmt.Errorf("invalid multipart form")
	}
	return nil
}

// formUploads reads every file field of a parsed multipart form except the
// configuration itself, in field name order. Only the first file of each field is used.
func formUploads(r *http.Request) ([]assets.Upload, error) {
	names := make([]string, 0, len(r.MultipartForm.File))
	for name := range r.MultipartForm.File {
		if name == configField {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	uploads := make([]assets.Upload, 0, len(names))
	for _, name := range names {
		headers := r.MultipartForm.File[name]
		if len(headers) == 0 {
			continue
		}
		data, err := readFormFile(r, name)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, assets.Upload{Field: name, Filename: headers[0].Filename, Data: data})
	}
	return uploads, nil
}

func readFormFile(r *http.Request, name string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	logger := sitelog.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		r = r.WithContext(sitelog.ContextWithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		logger.Info().
			Str(sitelog.FieldRequestID, requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
