package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"

	sitelog "sitecms/api/internal/log"
)

const (
	idxServices = "site_services"
	idxAreas    = "site_areas"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  zerolog.Logger
	healthy atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	indexed map[string]map[string]bool
}

// NewMeili creates a Meilisearch client and configures indexes.
// An unreachable server is not an error; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client:  client,
		logger:  sitelog.WithComponent("search"),
		done:    make(chan struct{}),
		indexed: map[string]map[string]bool{},
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{uid: idxServices, searchable: []string{"name", "shortDesc", "features", "longDesc"}},
		{uid: idxAreas, searchable: []string{"name", "postcodes"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}
		searchable := idx.searchable
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or the filtered one) and concatenates results,
// services first.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = DefaultLimit
	}

	var queries []*meili.SearchRequest
	for _, ti := range []struct {
		uid  string
		rtyp ResultType
	}{
		{idxServices, ResultService},
		{idxAreas, ResultArea},
	} {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			AttributesToHighlight: []string{"name", "shortDesc"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxServices:
		return ResultService
	case idxAreas:
		return ResultArea
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	id := decodeString(hit, "id")
	r := Result{
		Type:  rtyp,
		ID:    id,
		Title: firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name")),
		URL:   resultURL(rtyp, id),
	}
	switch rtyp {
	case ResultService:
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "shortDesc"), decodeString(hit, "shortDesc"))
	case ResultArea:
		r.Snippet = strings.Join(decodeStrings(hit, "postcodes"), ", ")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeStrings(hit meili.Hit, key string) []string {
	raw, ok := hit[key]
	if !ok {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// ReplaceAll upserts every record and deletes the ones this process indexed
// earlier that are no longer present.
func (m *Meili) ReplaceAll(services []ServiceRecord, areas []AreaRecord) error {
	serviceIDs := make([]string, 0, len(services))
	for _, s := range services {
		serviceIDs = append(serviceIDs, s.ID)
	}
	areaIDs := make([]string, 0, len(areas))
	for _, a := range areas {
		areaIDs = append(areaIDs, a.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(services) > 0 {
		if _, err := m.client.Index(idxServices).AddDocuments(services, nil); err != nil {
			return fmt.Errorf("index services: %w", err)
		}
	}
	if len(areas) > 0 {
		if _, err := m.client.Index(idxAreas).AddDocuments(areas, nil); err != nil {
			return fmt.Errorf("index areas: %w", err)
		}
	}
	if err := m.prune(idxServices, serviceIDs); err != nil {
		return err
	}
	return m.prune(idxAreas, areaIDs)
}

// prune must be called with m.mu held.
func (m *Meili) prune(uid string, ids []string) error {
	current := make(map[string]bool, len(ids))
	for _, id := range ids {
		current[id] = true
	}
	for id := range m.indexed[uid] {
		if current[id] {
			continue
		}
		if _, err := m.client.Index(uid).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete %s from %s: %w", id, uid, err)
		}
	}
	m.indexed[uid] = current
	return nil
}
