package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/editor"
	"sitecms/api/internal/leads"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/search"
)

// ConfigReader serves the current configuration snapshot.
type ConfigReader interface {
	Get(ctx context.Context) (schema.SiteConfiguration, error)
}

// Checker is one readiness dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config   ConfigReader
	Writer   editor.Committer
	Assets   editor.Uploader
	Sessions *editor.Manager
	Leads    *leads.Service
	Search   *search.Service
	// Checks are reported by the readiness endpoint under their keys.
	Checks map[string]Checker
}

type Service struct {
	config   ConfigReader
	writer   editor.Committer
	assets   editor.Uploader
	sessions *editor.Manager
	leads    *leads.Service
	search   *search.Service
	checks   map[string]Checker
}

func New(opts Options) *Service {
	return &Service{
		config:   opts.Config,
		writer:   opts.Writer,
		assets:   opts.Assets,
		sessions: opts.Sessions,
		leads:    opts.Leads,
		search:   opts.Search,
		checks:   opts.Checks,
	}
}

type CheckResult struct {
	Name string
	Err  error
}

// Ready pings every dependency, in name order.
func (s *Service) Ready(ctx context.Context) []CheckResult {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		results = append(results, CheckResult{Name: name, Err: s.checks[name].Ping(ctx)})
	}
	return results
}

func (s *Service) Configuration(ctx context.Context) (schema.SiteConfiguration, error) {
	return s.config.Get(ctx)
}

// SaveConfiguration is the write interface: a whole candidate plus the files
// its asset fields refer to. Nothing is written unless the candidate is valid
// and every field name is known.
func (s *Service) SaveConfiguration(ctx context.Context, raw []byte, uploads []assets.Upload) error {
	candidate, err := decodeCandidate(raw)
	if err != nil {
		return err
	}
	if err := schema.Validate(candidate); err != nil {
		return err
	}
	stored, err := s.assets.StoreAll(ctx, &candidate, uploads)
	if err != nil {
		return err
	}
	if err := s.writer.Commit(ctx, candidate); err != nil {
		return err
	}
	logger := sitelog.FromContext(ctx, "app")
	logger.Info().Str(sitelog.FieldEvent, "config.saved").Int("uploads", len(stored)).Msg("configuration saved")
	return nil
}

func decodeCandidate(raw []byte) (schema.SiteConfiguration, error) {
	var cfg schema.SiteConfiguration
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "config is required", nil)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, domainError(http.StatusBadRequest, "INVALID_CONFIG", fmt.Sprintf("config is not a valid configuration: %v", err), nil)
	}
	if decoder.More() {
		return cfg, domainError(http.StatusBadRequest, "INVALID_CONFIG", "config has trailing data", nil)
	}
	return cfg, nil
}

func (s *Service) CreateSession(ctx context.Context) (editor.View, error) {
	session, err := s.sessions.Create(ctx)
	if err != nil {
		return editor.View{}, err
	}
	return session.View(), nil
}

func (s *Service) Session(ctx context.Context, id string) (editor.View, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return editor.View{}, err
	}
	return session.View(), nil
}

// UpdateSession applies fn to a session and stores its snapshot.
func (s *Service) UpdateSession(ctx context.Context, id string, fn func(*editor.Session) error) (*editor.Session, error) {
	return s.sessions.Update(ctx, id, fn)
}

func (s *Service) DiscardSession(ctx context.Context, id string) error {
	if _, err := s.sessions.Get(ctx, id); err != nil {
		return err
	}
	return s.sessions.Discard(ctx, id)
}

// SaveSession runs the save protocol for a session.
func (s *Service) SaveSession(ctx context.Context, id string) (editor.View, error) {
	session, err := s.sessions.Update(ctx, id, func(session *editor.Session) error {
		_, err := session.Save(ctx)
		return err
	})
	if err != nil {
		return editor.View{}, err
	}
	return session.View(), nil
}

func (s *Service) SubmitLead(ctx context.Context, lead leads.Lead) (leads.Result, error) {
	return s.leads.Submit(ctx, lead)
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}
