package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sitecms/api/internal/schema"
)

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	services, areas := Records(schema.Seed())
	if err := m.ReplaceAll(services, areas); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	return m
}

func ids(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, string(r.Type)+":"+r.ID)
	}
	return out
}

func TestMemorySearch(t *testing.T) {
	m := seededMemory(t)
	tests := []struct {
		name  string
		query Query
		want  []string
		total int
	}{
		{name: "title match ranks first", query: Query{Text: "boiler"}, want: []string{"service:boiler-installation", "service:heat-pumps"}, total: 2},
		{name: "every term must match", query: Query{Text: "boiler warranty"}, want: []string{"service:boiler-installation"}, total: 1},
		{name: "postcodes", query: Query{Text: "ox1"}, want: []string{"area:oxford", "area:abingdon"}, total: 2},
		{name: "case insensitive", query: Query{Text: "GRANT"}, want: []string{"service:heat-pumps"}, total: 1},
		{name: "type filter", query: Query{Text: "o", FilterType: ResultArea}, want: []string{"area:oxford", "area:abingdon"}, total: 2},
		{name: "limit keeps total", query: Query{Text: "ox1", Limit: 1}, want: []string{"area:oxford"}, total: 2},
		{name: "blank query", query: Query{Text: "   "}, want: []string{}, total: 0},
		{name: "no match", query: Query{Text: "roofing"}, want: []string{}, total: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, total, err := m.Search(tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(results)); diff != "" {
				t.Fatalf("results mismatch (-want +got):\n%s", diff)
			}
			if total != tt.total {
				t.Fatalf("total = %d, want %d", total, tt.total)
			}
		})
	}
}

func TestResultsCarryURLs(t *testing.T) {
	results, _, _ := seededMemory(t).Search(Query{Text: "abingdon"})
	want := []Result{{Type: ResultArea, ID: "abingdon", Title: "Abingdon", Snippet: "OX13, OX14", URL: "/areas/abingdon"}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

type fakeBackend struct {
	mu       sync.Mutex
	healthy  bool
	err      error
	results  []Result
	replaced [][]ServiceRecord
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(Query) ([]Result, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return append([]Result(nil), f.results...), len(f.results), nil
}

func (f *fakeBackend) ReplaceAll(services []ServiceRecord, _ []AreaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, services)
	return nil
}

func TestServiceUsesPrimaryAndDropsStaleHits(t *testing.T) {
	primary := &fakeBackend{healthy: true, results: []Result{
		{Type: ResultService, ID: "heat-pumps"},
		{Type: ResultService, ID: "removed-service"},
	}}
	svc := NewService(primary)
	svc.Reindex(context.Background(), schema.Seed())
	svc.Wait()

	if len(primary.replaced) != 1 || len(primary.replaced[0]) != 2 {
		t.Fatalf("primary not reindexed: %+v", primary.replaced)
	}
	resp := svc.Search(Query{Text: "heat"})
	if diff := cmp.Diff([]string{"service:heat-pumps"}, ids(resp.Results)); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if resp.Total != 1 || resp.Query != "heat" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
}

func TestServiceFallsBackToMemory(t *testing.T) {
	for name, primary := range map[string]Backend{
		"failing":        &fakeBackend{healthy: true, err: errors.New("timeout")},
		"unhealthy":      &fakeBackend{healthy: false},
		"not configured": nil,
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewService(primary)
			svc.Reindex(context.Background(), schema.Seed())
			svc.Wait()

			resp := svc.Search(Query{Text: "oxford"})
			if diff := cmp.Diff([]string{"area:oxford"}, ids(resp.Results)); diff != "" {
				t.Fatalf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServiceReindexReplacesMemory(t *testing.T) {
	svc := NewService(nil)
	svc.Reindex(context.Background(), schema.Seed())

	cfg := schema.Seed()
	cfg.Areas = cfg.Areas[:1]
	svc.Reindex(context.Background(), cfg)

	resp := svc.Search(Query{Text: "abingdon"})
	if len(resp.Results) != 0 || resp.Results == nil {
		t.Fatalf("expected empty non-nil results, got %#v", resp.Results)
	}
}
