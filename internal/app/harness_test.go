package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/editor"
	"sitecms/api/internal/leads"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/search"
	"sitecms/api/internal/session"
	"sitecms/api/internal/store"
)

type harness struct {
	t        *testing.T
	handler  http.Handler
	backend  *store.FileBackend
	cache    *store.Cache
	assetDir string
	search   *search.Service
}

type harnessOptions struct {
	leadRate int
	checks   map[string]Checker
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	backend := store.NewFileBackend(filepath.Join(dir, "site.config.ts"))
	if err := store.Seed(ctx, backend, schema.Seed()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	configStore := store.NewConfigStore(backend)
	cache := store.NewCache(configStore)
	searchService := search.NewService(nil)
	writer := store.NewWriter(backend)
	writer.OnCommit(func(_ context.Context, cfg schema.SiteConfiguration) { cache.Set(cfg) })
	writer.OnCommit(searchService.Reindex)
	searchService.Reindex(ctx, schema.Seed())

	assetDir := filepath.Join(dir, "uploads")
	ms := int64(1_700_000_000_000)
	pipeline := assets.NewPipeline(assets.NewDiskStorage(assetDir, "/uploads")).
		WithClock(func() time.Time { return time.UnixMilli(ms) })

	deps := editor.Deps{Writer: writer, Assets: pipeline}
	checks := opts.checks
	if checks == nil {
		checks = map[string]Checker{"store": configStore}
	}
	service := New(Options{
		Config:   cache,
		Writer:   writer,
		Assets:   pipeline,
		Sessions: editor.NewManager(cache, session.NewMemoryStore(), deps, time.Hour),
		Leads:    leads.NewService(cache, nil),
		Search:   searchService,
		Checks:   checks,
	})
	server := NewHTTPServer(service, HTTPOptions{CORSOrigin: "*", LeadRatePerMinute: opts.leadRate})
	return &harness{t: t, handler: server.Handler(), backend: backend, cache: cache, assetDir: assetDir, search: searchService}
}

func (h *harness) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	h.t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			h.t.Fatalf("marshal payload: %v", err)
		}
	}
	return h.do(method, path, body, "application/json")
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

func (h *harness) doMultipart(path string, values map[string]string, files ...formFile) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range values {
		if err := mw.WriteField(name, value); err != nil {
			h.t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			h.t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			h.t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		h.t.Fatalf("close multipart: %v", err)
	}
	return h.do(http.MethodPost, path, buf.Bytes(), mw.FormDataContentType())
}

// stored reads the configuration straight from the artifact.
func (h *harness) stored() schema.SiteConfiguration {
	h.t.Helper()
	cfg, err := store.NewConfigStore(h.backend).Load(context.Background())
	if err != nil {
		h.t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	return decodeRaw[T](t, rr.Body.Bytes())
}

func decodeRaw[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return out
}

type errorBody struct {
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d: %s", rr.Code, status, rr.Body.String())
	}
	body := decode[errorBody](t, rr)
	if body.Code != code {
		t.Fatalf("code = %q, want %q: %s", body.Code, code, rr.Body.String())
	}
	return body
}
