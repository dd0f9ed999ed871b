package search

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Backend is a search engine that can be rebuilt from the configuration.
type Backend interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index.
type Service struct {
	primary Backend
	memory  *Memory
	logger  zerolog.Logger
	pending sync.WaitGroup
}

// NewService creates a search service. primary may be nil if Meilisearch is
// not configured.
func NewService(primary Backend) *Service {
	return &Service{primary: primary, memory: NewMemory(), logger: sitelog.WithComponent("search")}
}

// Search tries the primary backend if healthy, otherwise falls back to memory.
func (s *Service) Search(q Query) Response {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}

	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			results, total = s.current(results, total)
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("primary search failed, falling back to memory")
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		s.logger.Error().Err(err).Msg("memory search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// current drops hits for records that no longer exist in the configuration.
// The primary index may still hold them from before a restart.
func (s *Service) current(results []Result, total int) ([]Result, int) {
	kept := results[:0]
	for _, r := range results {
		if s.memory.Has(r.Type, r.ID) {
			kept = append(kept, r)
			continue
		}
		total--
	}
	return kept, total
}

// Reindex rebuilds the indexes from cfg. The memory index is updated before
// returning; the primary backend is updated in the background. Reindex has
// the shape of a store commit listener.
func (s *Service) Reindex(ctx context.Context, cfg schema.SiteConfiguration) {
	services, areas := Records(cfg)
	_ = s.memory.ReplaceAll(services, areas)

	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	logger := sitelog.FromContext(ctx, "search")
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.primary.ReplaceAll(services, areas); err != nil {
			logger.Error().Err(err).Msg("reindex failed")
			return
		}
		logger.Debug().Int("services", len(services)).Int("areas", len(areas)).Msg("reindexed")
	}()
}

// Wait blocks until background reindexing has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
