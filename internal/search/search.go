package search

import (
	"strings"

	"sitecms/api/internal/schema"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultService ResultType = "service"
	ResultArea    ResultType = "area"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	URL     string     `json:"url"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer replaces everything in an index with the given records.
type Indexer interface {
	ReplaceAll(services []ServiceRecord, areas []AreaRecord) error
}

// ServiceRecord is the data we index for a service. ID is the slug.
type ServiceRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ShortDesc string   `json:"shortDesc"`
	LongDesc  string   `json:"longDesc"`
	Features  []string `json:"features"`
}

// AreaRecord is the data we index for an area. ID is the slug.
type AreaRecord struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Postcodes []string `json:"postcodes"`
}

// Records extracts the searchable entities from cfg.
func Records(cfg schema.SiteConfiguration) ([]ServiceRecord, []AreaRecord) {
	services := make([]ServiceRecord, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		services = append(services, ServiceRecord{
			ID:        s.Slug,
			Name:      s.Name,
			ShortDesc: s.ShortDesc,
			LongDesc:  s.LongDesc,
			Features:  append([]string(nil), s.Features...),
		})
	}
	areas := make([]AreaRecord, 0, len(cfg.Areas))
	for _, a := range cfg.Areas {
		areas = append(areas, AreaRecord{
			ID:        a.Slug,
			Name:      a.Name,
			Postcodes: append([]string(nil), a.Postcodes...),
		})
	}
	return services, areas
}

func resultURL(rtyp ResultType, id string) string {
	switch rtyp {
	case ResultService:
		return "/services/" + id
	case ResultArea:
		return "/areas/" + id
	default:
		return ""
	}
}

func serviceResult(r ServiceRecord) Result {
	return Result{
		Type:    ResultService,
		ID:      r.ID,
		Title:   r.Name,
		Snippet: r.ShortDesc,
		URL:     resultURL(ResultService, r.ID),
	}
}

func areaResult(r AreaRecord) Result {
	return Result{
		Type:    ResultArea,
		ID:      r.ID,
		Title:   r.Name,
		Snippet: strings.Join(r.Postcodes, ", "),
		URL:     resultURL(ResultArea, r.ID),
	}
}
