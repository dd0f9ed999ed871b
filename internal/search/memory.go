package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory searches the records of the current configuration in process. It
// serves every query while Meilisearch is absent or unhealthy.
type Memory struct {
	mu       sync.RWMutex
	services []ServiceRecord
	areas    []AreaRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Healthy() bool { return true }

func (m *Memory) ReplaceAll(services []ServiceRecord, areas []AreaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append([]ServiceRecord(nil), services...)
	m.areas = append([]AreaRecord(nil), areas...)
	return nil
}

// Has reports whether a record with id is currently indexed.
func (m *Memory) Has(rtyp ResultType, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch rtyp {
	case ResultService:
		for _, s := range m.services {
			if s.ID == id {
				return true
			}
		}
	case ResultArea:
		for _, a := range m.areas {
			if a.ID == id {
				return true
			}
		}
	}
	return false
}

type scored struct {
	result Result
	score  int
}

// Search matches records containing every query term, case-insensitively.
// Records whose title matches rank first; ties keep configuration order with
// services before areas.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 {
		return nil, 0, nil
	}

	m.mu.RLock()
	var hits []scored
	if q.FilterType == "" || q.FilterType == ResultService {
		for _, s := range m.services {
			text := append([]string{s.Name, s.ShortDesc, s.LongDesc}, s.Features...)
			if score, ok := match(terms, s.Name, text); ok {
				hits = append(hits, scored{result: serviceResult(s), score: score})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultArea {
		for _, a := range m.areas {
			text := append([]string{a.Name}, a.Postcodes...)
			if score, ok := match(terms, a.Name, text); ok {
				hits = append(hits, scored{result: areaResult(a), score: score})
			}
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	total := len(hits)
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.result)
	}
	return results, total, nil
}

func match(terms []string, title string, fields []string) (int, bool) {
	haystack := strings.ToLower(strings.Join(fields, "\n"))
	title = strings.ToLower(title)
	score := 0
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return 0, false
		}
		if strings.Contains(title, term) {
			score++
		}
	}
	return score, true
}
